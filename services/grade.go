package services

import (
	"regexp"
	"strconv"
	"strings"
)

// gradeRegexp finds a grading-service marker followed by a 1–2 digit grade.
var gradeRegexp = regexp.MustCompile(`\b(psa|bgs|cgc|sgc)\s*(\d{1,2})\b`)

// Grade is a third-party grading mark found in a title.
type Grade struct {
	Service string
	Value   int
}

// Label renders the grade the way sellers write it, e.g. "PSA 9".
func (g Grade) Label() string {
	return strings.ToUpper(g.Service) + " " + strconv.Itoa(g.Value)
}

// ExtractGrade returns the first grading mark in a normalized title.
func ExtractGrade(titleNormalized string) (Grade, bool) {
	m := gradeRegexp.FindStringSubmatch(titleNormalized)
	if m == nil {
		return Grade{}, false
	}
	v, err := strconv.Atoi(m[2])
	if err != nil {
		return Grade{}, false
	}
	return Grade{Service: m[1], Value: v}, true
}

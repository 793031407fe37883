// Package validation содержит функции валидации входных данных.
package validation

import "unicode"

const nationalIDLength = 11

// IsValidNationalID проверяет формат национального идентификатора: ровно 11 цифр без ведущего нуля.
func IsValidNationalID(id string) bool {
	if len(id) != nationalIDLength || id[0] == '0' {
		return false
	}

	for _, ch := range id {
		if !unicode.IsDigit(ch) {
			return false
		}
	}

	return true
}

// IsValidBirthYear проверяет, что год рождения правдоподобен относительно текущего года.
func IsValidBirthYear(year, currentYear int) bool {
	return year >= 1900 && year <= currentYear
}

// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pii

import (
	"net"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// DefaultPatterns returns the built-in catalog. Card numbers are matched
// before the shorter digit formats so a phone or SSN expression never masks
// part of a card.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Type:        TypeCreditCard,
			Regex:       regexp.MustCompile(`(?i)\b(?:\d{4}[-\s]?){3}\d{4}\b`),
			Mask:        "****-****-****-****",
			Description: "Credit card number",
			Validator:   validCreditCard,
		},
		{
			Type:        TypeSSN,
			Regex:       regexp.MustCompile(`(?i)\b\d{3}-?\d{2}-?\d{4}\b`),
			Mask:        "***-**-****",
			Description: "Social Security Number",
			Validator:   validSSN,
		},
		{
			Type:        TypeEmail,
			Regex:       regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
			Mask:        "***@***.com",
			Description: "Email address",
		},
		{
			Type:        TypePhone,
			Regex:       regexp.MustCompile(`(?:(?:\b1[-.\s]?)?\(\d{3}\)[-.\s]?|\b(?:1[-.\s]?)?\d{3}[-.\s]?)\d{3}[-.\s]?\d{4}\b`),
			Mask:        "***-***-****",
			Description: "Phone number",
		},
		{
			Type:        TypeIPAddress,
			Regex:       regexp.MustCompile(`(?i)\b(?:\d{1,3}\.){3}\d{1,3}\b`),
			Mask:        "***.***.***.***",
			Description: "IP address",
			Validator:   validIPv4,
		},
		{
			Type:        TypeDateOfBirth,
			Regex:       regexp.MustCompile(`(?i)\b(?:0[1-9]|1[0-2])[-/](?:0[1-9]|[12]\d|3[01])[-/](?:19|20)\d{2}\b`),
			Mask:        "**/**/****",
			Description: "Date of birth",
		},
		{
			Type:        TypePassport,
			Regex:       regexp.MustCompile(`(?i)\b[A-Z]{1,2}\d{6,9}\b`),
			Mask:        "**-******",
			Description: "Passport number",
		},
		{
			Type:        TypeDriverLicense,
			Regex:       regexp.MustCompile(`(?i)\b[A-Z]\d{7,8}\b`),
			Mask:        "*-*******",
			Description: "Driver license number",
		},
	}
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func validCreditCard(match string) bool {
	clean := digitsOnly(match)
	if len(clean) < 13 || len(clean) > 19 {
		return false
	}
	return luhnCheck(clean)
}

// luhnCheck performs the Luhn checksum over a string of digits.
func luhnCheck(number string) bool {
	sum := 0
	alternate := false
	for i := len(number) - 1; i >= 0; i-- {
		digit := int(number[i] - '0')
		if alternate {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		alternate = !alternate
	}
	return sum%10 == 0
}

// validSSN rejects area numbers 000, 666 and 900-999 and zero group or
// serial numbers.
func validSSN(match string) bool {
	clean := digitsOnly(match)
	if len(clean) != 9 {
		return false
	}
	area, _ := strconv.Atoi(clean[0:3])
	group, _ := strconv.Atoi(clean[3:5])
	serial, _ := strconv.Atoi(clean[5:9])
	if area == 0 || area == 666 || area >= 900 {
		return false
	}
	return group != 0 && serial != 0
}

func validIPv4(match string) bool {
	ip := net.ParseIP(match)
	return ip != nil && ip.To4() != nil
}

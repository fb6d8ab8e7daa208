package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gradebox/internal/executor/language"
	"gradebox/internal/executor/model"
	appErr "gradebox/pkg/errors"
)

func (s *Service) resolveLanguage(name string) (language.Spec, error) {
	if strings.TrimSpace(name) == "" {
		return language.Spec{}, appErr.ValidationError("language", "required")
	}
	return s.registry.Get(name)
}

func (s *Service) validateCode(field, code string) error {
	if strings.TrimSpace(code) == "" {
		return appErr.ValidationError(field, "required")
	}
	if len(code) > s.maxCodeBytes {
		return appErr.Newf(appErr.CodeTooLarge, "%s exceeds %d bytes", field, s.maxCodeBytes).
			WithDetail("field", field)
	}
	return nil
}

// resolveTimeout converts a timeout in seconds. Zero selects the language
// default; values above the service maximum are clamped.
func (s *Service) resolveTimeout(seconds float64, lang language.Spec) (time.Duration, error) {
	if seconds < 0 || math.IsNaN(seconds) {
		return 0, appErr.ValidationError("timeout", "must not be negative")
	}
	// compare in float so huge values cannot overflow the Duration
	if seconds > s.maxTimeout.Seconds() {
		return s.maxTimeout, nil
	}
	timeout := time.Duration(seconds * float64(time.Second))
	if timeout == 0 {
		timeout = lang.Timeout()
	}
	return min(timeout, s.maxTimeout), nil
}

func (s *Service) validateTestData(field, data string) error {
	if len(data) > s.maxTestData {
		return appErr.Newf(appErr.TestDataTooLarge, "%s exceeds %d bytes", field, s.maxTestData).
			WithDetail("field", field)
	}
	return nil
}

// validatePeers bounds the peer list and every peer's code. Empty peer code
// is allowed; the detector skips it.
func (s *Service) validatePeers(peers []model.PeerSubmission) error {
	if len(peers) > s.maxPeers {
		return appErr.Newf(appErr.TooManyPeers, "at most %d peer submissions are allowed", s.maxPeers)
	}
	for i, p := range peers {
		if len(p.Code) > s.maxCodeBytes {
			field := fmt.Sprintf("peer_submissions[%d].code", i)
			return appErr.Newf(appErr.CodeTooLarge, "%s exceeds %d bytes", field, s.maxCodeBytes).
				WithDetail("field", field)
		}
	}
	return nil
}

func (s *Service) validateTestCases(groups map[string][]model.TestCase) (int, error) {
	total := 0
	for field, cases := range groups {
		for i, tc := range cases {
			if tc.Weight < 0 {
				return 0, appErr.ValidationError(fmt.Sprintf("%s[%d].weight", field, i), "must not be negative")
			}
			if err := s.validateTestData(fmt.Sprintf("%s[%d].input", field, i), tc.Input); err != nil {
				return 0, err
			}
			if err := s.validateTestData(fmt.Sprintf("%s[%d].expected_output", field, i), tc.ExpectedOutput); err != nil {
				return 0, err
			}
		}
		total += len(cases)
	}
	if total > s.maxTestCases {
		return 0, appErr.Newf(appErr.TooManyTestCases, "at most %d test cases are allowed", s.maxTestCases)
	}
	return total, nil
}

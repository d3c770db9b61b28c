package main

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type CommandTestSuite struct {
	suite.Suite
}

func TestCommandTestSuite(t *testing.T) {
	suite.Run(t, new(CommandTestSuite))
}

func (s *CommandTestSuite) TestPreferredLanguages() {
	testCases := []struct {
		name   string
		lang   string
		accept string
		env    map[string]string
		want   []string
	}{
		{"lang flag wins", "ta-IN", "en-GB", map[string]string{"LANG": "fr_FR.UTF-8"}, []string{"ta-IN"}},
		{"accept value", "", "en-GB,en;q=0.5", map[string]string{"LANG": "fr_FR.UTF-8"}, []string{"en-GB", "en"}},
		{"locale environment", "", "", map[string]string{"LC_MESSAGES": "ta_IN.UTF-8", "LANG": "en_GB.UTF-8"}, []string{"ta-IN", "en-GB"}},
		{"c locale", "", "", map[string]string{"LANG": "C.UTF-8"}, nil},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
				s.T().Setenv(key, tc.env[key])
			}
			s.Equal(tc.want, preferredLanguages(tc.lang, tc.accept))
		})
	}
}

package main

import (
	"bytes"
	"testing"

	"github.com/smallbiznis/posreport/internal/jobs"
	"github.com/stretchr/testify/assert"
)

func TestRunRejectsBadInvocations(t *testing.T) {
	cases := []struct {
		name string
		args []string
		code int
	}{
		{"no job", nil, jobs.ExitFailed},
		{"two jobs", []string{"dsr:update", "bir:aggregate-daily"}, jobs.ExitFailed},
		{"unknown flag", []string{"dsr:update", "--since", "2024-01-01"}, jobs.ExitFailed},
		{"help", []string{"--help"}, jobs.ExitOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tc.code, run(tc.args, &stdout, &stderr))
			assert.Empty(t, stdout.String())
			assert.Contains(t, stderr.String(), "usage: jobs")
		})
	}
}

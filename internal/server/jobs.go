package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/posreport/internal/jobs"
	obslogger "github.com/smallbiznis/posreport/internal/observability/logger"
	"go.uber.org/zap"
)

type RunJobRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Branch string `json:"branch"`
	Store  string `json:"store"`
}

type jobInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) ListJobs(c *gin.Context) {
	registered := s.jobs.Jobs()
	out := make([]jobInfo, 0, len(registered))
	for _, job := range registered {
		out = append(out, jobInfo{Name: job.Name(), Description: job.Description()})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// RunJob runs a batch synchronously and returns its captured output. The body is
// optional; without it the job covers yesterday and today.
func (s *Server) RunJob(c *gin.Context) {
	var req RunJobRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError("malformed job request"))
			return
		}
	}

	opts, err := jobs.ParseOptions(s.clock.Now(), req.From, req.To, req.Branch, req.Store)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	name := c.Param("name")
	if principal, ok := principalFromContext(c); ok {
		obslogger.WithContext(c.Request.Context(), s.log).Info("job triggered",
			zap.String("job", name),
			zap.String("user_id", principal.User.ID.String()),
		)
	}

	res := s.jobs.Run(c.Request.Context(), name, opts)
	c.JSON(jobStatus(res.ExitCode), res)
}

func jobStatus(exitCode int) int {
	switch exitCode {
	case jobs.ExitOK:
		return http.StatusOK
	case jobs.ExitUnknownJob:
		return http.StatusNotFound
	case jobs.ExitBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"goseldon/adapters/models"
	"goseldon/app"
	"goseldon/domain/core"
	"goseldon/domain/dataset"
	"goseldon/domain/run"
	"goseldon/internal/bounds"
	"goseldon/internal/candidate"
	"goseldon/internal/errors"
	"goseldon/internal/parsetree"
	"goseldon/internal/report"
	"goseldon/ports"
)

// ParseRequest asks for the parse tree of one constraint
type ParseRequest struct {
	Constraint string            `json:"constraint" binding:"required"`
	Regime     dataset.Regime    `json:"regime"`
	SubRegime  dataset.SubRegime `json:"sub_regime"`
	Delta      float64           `json:"delta" binding:"gte=0,lt=1"`
}

// LeafView is one statistic leaf of a parsed constraint
type LeafView struct {
	Name       string  `json:"name"`
	Statistic  string  `json:"statistic"`
	Kind       string  `json:"kind"`
	Method     string  `json:"method"`
	Lower      bool    `json:"needs_lower"`
	Upper      bool    `json:"needs_upper"`
	DeltaLower float64 `json:"delta_lower"`
	DeltaUpper float64 `json:"delta_upper"`
}

// ParseResponse describes a parsed constraint
type ParseResponse struct {
	Expression string     `json:"expression"`
	Comparison string     `json:"comparison"`
	Delta      float64    `json:"delta"`
	Tree       string     `json:"tree"`
	Leaves     []LeafView `json:"leaves"`
}

func (s *Server) handleParse(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.InvalidInput(err.Error()))
		return
	}
	opts := []parsetree.Option{parsetree.WithRegime(req.Regime, req.SubRegime)}
	if req.Delta > 0 {
		opts = append(opts, parsetree.WithDelta(req.Delta))
	}
	tree, err := parsetree.New(req.Constraint, opts...)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := ParseResponse{
		Expression: tree.Expression(),
		Comparison: string(tree.Comparison()),
		Delta:      tree.Delta(),
		Tree:       tree.Render(),
	}
	for _, l := range tree.Leaves() {
		resp.Leaves = append(resp.Leaves, LeafView{
			Name:       l.Name,
			Statistic:  l.Statistic,
			Kind:       l.Kind.String(),
			Method:     string(l.Method),
			Lower:      l.WillLower,
			Upper:      l.WillUpper,
			DeltaLower: l.DeltaLower,
			DeltaUpper: l.DeltaUpper,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// DataPayload is an inline dataset
type DataPayload struct {
	Meta      dataset.Meta      `json:"meta"`
	Features  [][]float64       `json:"features"`
	Labels    []float64         `json:"labels"`
	Sensitive [][]float64       `json:"sensitive"`
	Episodes  []dataset.Episode `json:"episodes"`
}

func (d DataPayload) dataset() (*dataset.Dataset, error) {
	if d.Meta.Regime == dataset.RegimeRL {
		return dataset.NewEpisodic(d.Meta, d.Episodes, d.Sensitive)
	}
	return dataset.NewSupervised(d.Meta, d.Features, d.Labels, d.Sensitive)
}

// RunRequest runs the algorithm on inline data
type RunRequest struct {
	Name         string                `json:"name"`
	Model        string                `json:"model" binding:"required"`
	ModelOptions models.Options        `json:"model_options"`
	Constraints  []string              `json:"constraints" binding:"required,min=1,dive,required"`
	Deltas       []float64             `json:"deltas" binding:"dive,gt=0,lt=1"`
	Delta        float64               `json:"delta" binding:"gte=0,lt=1"`
	Primary      string                `json:"primary" binding:"required"`
	Maximize     bool                  `json:"maximize"`
	FracSafety   float64               `json:"frac_safety" binding:"gte=0,lt=1"`
	Shuffle      bool                  `json:"shuffle"`
	Stratify     string                `json:"stratify"`
	Seed         int64                 `json:"seed"`
	BoundMethod  string                `json:"bound_method"`
	Barrier      string                `json:"barrier"`
	Tolerance    float64               `json:"tolerance" binding:"gte=0"`
	Optimizer    ports.Hyperparameters `json:"optimizer"`
	InitialTheta []float64             `json:"initial_theta"`
	Data         DataPayload           `json:"data"`
}

func (r RunRequest) spec() (app.Spec, error) {
	method, err := bounds.ParseMethod(r.BoundMethod)
	if err != nil {
		return app.Spec{}, errors.InvalidInput(err.Error())
	}
	barrier, err := candidate.ParseBarrier(r.Barrier)
	if err != nil {
		return app.Spec{}, errors.InvalidInput(err.Error())
	}
	return app.Spec{
		Name:         r.Name,
		Constraints:  r.Constraints,
		Deltas:       r.Deltas,
		Delta:        r.Delta,
		Primary:      r.Primary,
		Maximize:     r.Maximize,
		FracSafety:   r.FracSafety,
		Shuffle:      r.Shuffle,
		Stratify:     r.Stratify,
		Seed:         r.Seed,
		BoundMethod:  method,
		Tolerance:    r.Tolerance,
		Barrier:      barrier,
		Hyper:        r.Optimizer,
		InitialTheta: r.InitialTheta,
	}, nil
}

func (s *Server) handleRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.InvalidInput(err.Error()))
		return
	}
	spec, err := req.spec()
	if err != nil {
		s.fail(c, err)
		return
	}
	provider, err := models.New(req.Model, req.ModelOptions)
	if err != nil {
		s.fail(c, errors.InvalidInput(err.Error()))
		return
	}
	data, err := req.Data.dataset()
	if err != nil {
		s.fail(c, err)
		return
	}

	opts := []app.AlgorithmOption{app.WithLogger(s.log)}
	if s.runs != nil {
		opts = append(opts, app.WithRunRepository(s.runs))
	}
	out, err := app.NewAlgorithm(provider, s.optimizer, opts...).Run(c.Request.Context(), spec, data)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out.Record)
}

func (s *Server) lookupRun(c *gin.Context) (*run.Record, bool) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		s.fail(c, errors.InvalidInput(err.Error()))
		return nil, false
	}
	if s.runs == nil {
		s.fail(c, core.ErrRunNotFound)
		return nil, false
	}
	rec, err := s.runs.GetRun(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return rec, true
}

func (s *Server) handleGetRun(c *gin.Context) {
	if rec, ok := s.lookupRun(c); ok {
		c.JSON(http.StatusOK, rec)
	}
}

func (s *Server) handleRunReport(c *gin.Context) {
	rec, ok := s.lookupRun(c)
	if !ok {
		return
	}
	page, err := report.HTML(rec.Experiment, report.RunMarkdown(rec))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

func (s *Server) handleListRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		s.fail(c, errors.InvalidInput("limit must be a positive integer"))
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		s.fail(c, errors.InvalidInput("offset must be a non-negative integer"))
		return
	}
	if s.runs == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []*run.Record{}})
		return
	}
	runs, err := s.runs.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

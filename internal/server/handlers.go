package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fhirtab/fhirtab/internal/dataset"
	"github.com/fhirtab/fhirtab/internal/export"
	"github.com/fhirtab/fhirtab/internal/flatten"
	"github.com/fhirtab/fhirtab/internal/platform/fhir"
	"github.com/fhirtab/fhirtab/internal/platform/middleware"
	"github.com/fhirtab/fhirtab/internal/platform/sandbox"
	"github.com/fhirtab/fhirtab/internal/registry"
	"github.com/fhirtab/fhirtab/internal/survey"
	"github.com/fhirtab/fhirtab/pkg/pagination"
)

// flattenEnvelope is the wrapped request form: resources plus optional
// side-band questionnaire definitions for label resolution.
type flattenEnvelope struct {
	Resources      []json.RawMessage `json:"resources"`
	Questionnaires []json.RawMessage `json:"questionnaires"`
}

// processOptions narrows and shapes a /process or /summary request.
type processOptions struct {
	UserID     string    `json:"user_id,omitempty"`
	StartDate  string    `json:"start_date,omitempty"`
	EndDate    string    `json:"end_date,omitempty"`
	ValueRange []float64 `json:"value_range,omitempty"`
	Window     int       `json:"window,omitempty"`
	Stages     []string  `json:"stages,omitempty"`
}

type processEnvelope struct {
	flattenEnvelope
	Options processOptions `json:"options"`
}

// exportEnvelope narrows a /export/csv request.
type exportEnvelope struct {
	flattenEnvelope
	Options struct {
		Users      []string  `json:"users,omitempty"`
		StartDate  string    `json:"start_date,omitempty"`
		EndDate    string    `json:"end_date,omitempty"`
		ValueRange []float64 `json:"value_range,omitempty"`
	} `json:"options"`
}

// requestError pairs a request failure with the HTTP status it maps to.
// Handlers render it through renderRequestError so the response body is
// exactly one OperationOutcome document.
type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) *requestError {
	return &requestError{status: http.StatusBadRequest, err: err}
}

func unprocessable(err error) *requestError {
	return &requestError{status: http.StatusUnprocessableEntity, err: err}
}

// renderRequestError writes the OperationOutcome for a *requestError and
// hands every other error to echo's error handler.
func renderRequestError(c echo.Context, err error) error {
	var re *requestError
	if !errors.As(err, &re) {
		return err
	}
	if re.status == http.StatusBadRequest {
		return c.JSON(re.status, fhir.InvalidOutcome(re.err.Error()))
	}
	return c.JSON(re.status, fhir.ErrorOutcome(re.err.Error()))
}

func decodeRawResources(raw []json.RawMessage) ([]fhir.Resource, error) {
	resources := make([]fhir.Resource, 0, len(raw))
	for i, r := range raw {
		var res fhir.Resource
		if err := json.Unmarshal(r, &res); err != nil {
			return nil, fmt.Errorf("decode resource %d: %w", i, err)
		}
		resources = append(resources, res)
	}
	return resources, nil
}

// decodeResources reads the request body and returns the resource batch plus
// any side-band questionnaire definitions. Accepts a bare array, a Bundle,
// or the wrapped envelope form.
func decodeResources(body []byte) ([]fhir.Resource, [][]byte, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") && strings.Contains(trimmed, `"resources"`) {
		var env flattenEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, nil, fmt.Errorf("decode request envelope: %w", err)
		}
		resources, err := decodeRawResources(env.Resources)
		if err != nil {
			return nil, nil, err
		}
		defs := make([][]byte, 0, len(env.Questionnaires))
		for _, raw := range env.Questionnaires {
			defs = append(defs, raw)
		}
		return resources, defs, nil
	}

	resources, err := fhir.ParseResources(body)
	if err != nil {
		return nil, nil, err
	}
	return resources, nil, nil
}

// flattenerFor returns the shared flattener, or one bound to the request's
// own questionnaire definitions.
func (s *Server) flattenerFor(defs [][]byte) (*flatten.Flattener, error) {
	if len(defs) == 0 {
		return s.flat, nil
	}
	mapper, err := survey.NewMapper(defs...)
	if err != nil {
		return nil, err
	}
	return flatten.New(s.reg, flatten.WithLogger(s.log), flatten.WithSurveyMapper(mapper)), nil
}

// flattenBody runs the full decode-and-flatten path shared by the POST
// endpoints. Decode failures map to 400, flattening failures to 422, both
// as *requestError values for renderRequestError.
func (s *Server) flattenBody(c echo.Context) (*dataset.Dataset, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	resources, defs, err := decodeResources(body)
	if err != nil {
		return nil, badRequest(err)
	}

	flattener, err := s.flattenerFor(defs)
	if err != nil {
		return nil, badRequest(err)
	}

	ds, err := flattener.Flatten(resources)
	if err != nil {
		resourceType := "unknown"
		if len(resources) > 0 {
			resourceType = resources[0].Kind()
		}
		s.tp.FlattenRequestCounter(resourceType, "error")
		return nil, unprocessable(err)
	}

	s.tp.FlattenRequestCounter(ds.ResourceType(), "ok")
	s.tp.FlattenRowsCounter(ds.ResourceType(), int64(ds.Len()))
	logger := middleware.RequestLogger(c)
	logger.Debug().
		Str("resource_type", ds.ResourceType()).
		Int("rows", ds.Len()).
		Msg("flattened batch")
	return ds, nil
}

// flattenProcessEnvelope decodes the wrapped request form and flattens it,
// returning the narrowing options alongside the dataset.
func (s *Server) flattenProcessEnvelope(c echo.Context) (*dataset.Dataset, processOptions, error) {
	var opts processOptions

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, opts, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	var env processEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, opts, badRequest(fmt.Errorf("decode request: %w", err))
	}

	resources, err := decodeRawResources(env.Resources)
	if err != nil {
		return nil, opts, badRequest(err)
	}

	defs := make([][]byte, 0, len(env.Questionnaires))
	for _, raw := range env.Questionnaires {
		defs = append(defs, raw)
	}
	flattener, err := s.flattenerFor(defs)
	if err != nil {
		return nil, opts, badRequest(err)
	}

	ds, err := flattener.Flatten(resources)
	if err != nil {
		return nil, opts, unprocessable(err)
	}
	return ds, env.Options, nil
}

// renderDataset writes a dataset in the requested format: json (default),
// csv, or ndjson.
func renderDataset(c echo.Context, ds *dataset.Dataset) error {
	switch format := c.QueryParam("format"); format {
	case "", "json":
		return c.JSON(http.StatusOK, ds)
	case "csv":
		out, err := ds.CSV()
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, "text/csv", []byte(out))
	case "ndjson":
		var buf bytes.Buffer
		if err := ds.WriteNDJSON(&buf); err != nil {
			return err
		}
		return c.Blob(http.StatusOK, "application/x-ndjson", buf.Bytes())
	default:
		return c.JSON(http.StatusBadRequest,
			fhir.InvalidOutcome(fmt.Sprintf("unsupported format %q; use json, csv, or ndjson", format)))
	}
}

func (s *Server) handleFlatten(c echo.Context) error {
	ds, err := s.flattenBody(c)
	if err != nil {
		return renderRequestError(c, err)
	}
	return renderDataset(c, ds)
}

func (s *Server) handleProcess(c echo.Context) error {
	ds, opts, err := s.flattenProcessEnvelope(c)
	if err != nil {
		return renderRequestError(c, err)
	}

	ds, err = s.runStages(ds, opts)
	if err != nil {
		var badStage *unknownStageError
		if errors.As(err, &badStage) {
			return renderRequestError(c, badRequest(err))
		}
		return renderRequestError(c, unprocessable(err))
	}
	return renderDataset(c, ds)
}

func (s *Server) handleSummary(c echo.Context) error {
	ds, opts, err := s.flattenProcessEnvelope(c)
	if err != nil {
		return renderRequestError(c, err)
	}

	ds, err = s.narrow(ds, opts)
	if err != nil {
		return renderRequestError(c, unprocessable(err))
	}

	sums, err := s.proc.Summary(ds)
	if err != nil {
		return renderRequestError(c, unprocessable(err))
	}
	return c.JSON(http.StatusOK, sums)
}

type unknownStageError struct {
	stage string
}

func (e *unknownStageError) Error() string {
	return fmt.Sprintf("unknown pipeline stage %q; supported: filter, daily, average, moving, activity, score", e.stage)
}

// narrow applies the user and date selections requested by the options.
func (s *Server) narrow(ds *dataset.Dataset, opts processOptions) (*dataset.Dataset, error) {
	var err error
	if opts.UserID != "" {
		if ds, err = s.proc.SelectDataByUser(ds, opts.UserID); err != nil {
			return nil, err
		}
	}
	if opts.StartDate != "" || opts.EndDate != "" {
		if ds, err = s.proc.SelectDataByDateStrings(ds, opts.StartDate, opts.EndDate); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// runStages applies the requested narrowing and aggregation stages in
// order, timing each for telemetry.
func (s *Server) runStages(ds *dataset.Dataset, opts processOptions) (*dataset.Dataset, error) {
	ds, err := s.narrow(ds, opts)
	if err != nil {
		return nil, err
	}

	var rng *registry.ValueRange
	if len(opts.ValueRange) == 2 {
		rng = &registry.ValueRange{Lo: opts.ValueRange[0], Hi: opts.ValueRange[1]}
	}

	window := opts.Window
	if window < 1 {
		window = s.cfg.DefaultMovingWindow
	}

	stages := opts.Stages
	if len(stages) == 0 {
		stages = []string{"filter", "daily"}
	}

	for _, stage := range stages {
		start := time.Now()
		switch stage {
		case "filter":
			ds, err = s.proc.FilterOutliers(ds, rng)
		case "daily":
			ds, err = s.proc.CalculateDailyData(ds)
		case "average":
			ds, err = s.proc.CalculateAverageData(ds)
		case "moving":
			ds, err = s.proc.MovingAverage(ds, window)
		case "activity":
			ds, err = s.proc.ActivityIndex(ds, window)
		case "score":
			ds, err = survey.Score(ds)
		default:
			return nil, &unknownStageError{stage: stage}
		}
		if err != nil {
			return nil, err
		}
		s.tp.ObserveStage(stage, time.Since(start).Seconds())
	}
	return ds, nil
}

func (s *Server) handleExportCSV(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	var env exportEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return renderRequestError(c, badRequest(fmt.Errorf("decode request: %w", err)))
	}

	resources, err := decodeRawResources(env.Resources)
	if err != nil {
		return renderRequestError(c, badRequest(err))
	}

	defs := make([][]byte, 0, len(env.Questionnaires))
	for _, raw := range env.Questionnaires {
		defs = append(defs, raw)
	}
	flattener, err := s.flattenerFor(defs)
	if err != nil {
		return renderRequestError(c, badRequest(err))
	}

	ds, err := flattener.Flatten(resources)
	if err != nil {
		return renderRequestError(c, unprocessable(err))
	}

	opts := []export.Option{export.WithProcessor(s.proc)}
	if len(env.Options.Users) > 0 {
		opts = append(opts, export.WithUsers(env.Options.Users...))
	}
	if env.Options.StartDate != "" || env.Options.EndDate != "" {
		opts = append(opts, export.WithDateRange(env.Options.StartDate, env.Options.EndDate))
	}
	if len(env.Options.ValueRange) == 2 {
		opts = append(opts, export.WithValueRange(env.Options.ValueRange[0], env.Options.ValueRange[1]))
	}

	var buf bytes.Buffer
	if err := export.New(ds, opts...).WriteCSV(&buf); err != nil {
		return renderRequestError(c, unprocessable(err))
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="dataset.csv"`)
	return c.Blob(http.StatusOK, "text/csv", buf.Bytes())
}

// codeEntry is a registry entry plus whether the code is actually known.
type codeEntry struct {
	registry.Entry
	Known bool `json:"known"`
}

func (s *Server) handleCodes(c echo.Context) error {
	codes := s.reg.Codes()
	p := pagination.FromContext(c)
	lo, hi := p.Slice(len(codes))

	out := make([]codeEntry, 0, hi-lo)
	for _, code := range codes[lo:hi] {
		out = append(out, codeEntry{Entry: s.reg.Lookup(code), Known: true})
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(out, len(codes), p))
}

func (s *Server) handleCode(c echo.Context) error {
	code := c.Param("code")
	entry := codeEntry{Entry: s.reg.Lookup(code), Known: s.reg.Known(code)}
	return c.JSON(http.StatusOK, entry)
}

func (s *Server) handleSandboxDataset(c echo.Context) error {
	gen := sandbox.NewGenerator(sandbox.Config{
		Users: s.cfg.SandboxUsers,
		Days:  s.cfg.SandboxDays,
		Seed:  s.cfg.SandboxSeed,
	})

	ds, err := s.flat.Flatten(gen.Observations())
	if err != nil {
		return renderRequestError(c, unprocessable(err))
	}
	s.tp.SetDatasetRows(int64(ds.Len()))
	return renderDataset(c, ds)
}

// Package parse turns the JSON report an app kernel run leaves in the
// explorer into structured metrics.
package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gyeh/akload/internal/model"
)

// Reporter types understood by this parser.
const (
	ReporterAppKernel = "app_kernel"
)

// Payload statuses.
const (
	StatusDone   = "done"
	StatusQueued = "queued"
	StatusError  = "error"
)

type payload struct {
	Reporter      string        `json:"reporter"`
	Kernel        string        `json:"kernel"`
	Status        string        `json:"status"`
	Error         string        `json:"error"`
	Version       string        `json:"version"`
	ProcessorUnit string        `json:"processor_unit"`
	Metrics       []metricEntry `json:"metrics"`
	Parameters    []paramEntry  `json:"parameters"`
}

type metricEntry struct {
	Name  string      `json:"name"`
	Unit  string      `json:"unit"`
	Value json.Number `json:"value"`
}

type paramEntry struct {
	Name  string `json:"name"`
	Unit  string `json:"unit"`
	Value string `json:"value"`
}

// Parser implements the ingestion parse step for AKRR-style JSON reports.
type Parser struct{}

// New returns a Parser.
func New() *Parser {
	return &Parser{}
}

// Parse classifies raw into one of the parse kinds. A successful result
// carries a freshly allocated ParsedInstance.
func (p *Parser) Parse(ctx context.Context, raw model.RawInstance) model.ParseResult {
	body := strings.TrimSpace(raw.Body)
	if body == "" {
		return failed("empty report body")
	}

	var pl payload
	if err := json.Unmarshal([]byte(body), &pl); err != nil {
		return failed(fmt.Sprintf("decode report: %v", err))
	}

	switch pl.Reporter {
	case ReporterAppKernel:
	case "":
		return failed("report has no reporter type")
	default:
		return model.ParseResult{
			Kind:    model.ParseUnknownType,
			Message: fmt.Sprintf("unknown reporter type %q", pl.Reporter),
		}
	}

	switch pl.Status {
	case StatusQueued:
		return model.ParseResult{Kind: model.ParseQueued, Message: "instance still queued"}
	case StatusError:
		return model.ParseResult{Kind: model.ParseGenericError, Message: firstNonEmpty(pl.Error, raw.Message, "instance reported an error")}
	case StatusDone, "":
		if pl.Error != "" {
			return model.ParseResult{Kind: model.ParseGenericError, Message: pl.Error}
		}
	default:
		return failed(fmt.Sprintf("unknown report status %q", pl.Status))
	}

	metrics := make([]model.MetricValue, 0, len(pl.Metrics))
	seen := make(map[[2]string]struct{}, len(pl.Metrics))
	for _, m := range pl.Metrics {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return failed("metric without a name")
		}
		unit := strings.TrimSpace(m.Unit)
		key := [2]string{name, unit}
		if _, dup := seen[key]; dup {
			return failed(fmt.Sprintf("metric %q (%s) reported more than once", name, unit))
		}
		seen[key] = struct{}{}
		v, err := m.Value.Float64()
		if err != nil {
			return failed(fmt.Sprintf("metric %q: %v", name, err))
		}
		metrics = append(metrics, model.MetricValue{Name: name, Unit: unit, Value: v})
	}
	if raw.Completed && len(metrics) == 0 {
		return failed("completed instance reported no metrics")
	}

	params := make([]model.ParameterValue, 0, len(pl.Parameters))
	for _, pe := range pl.Parameters {
		if pe.Name == "" {
			continue
		}
		params = append(params, model.ParameterValue{Name: pe.Name, Unit: pe.Unit, Value: pe.Value})
	}

	status := model.StatusSuccess
	if !raw.Completed {
		status = model.StatusFailure
	}

	return model.ParseResult{
		Kind: model.ParseOK,
		Data: &model.ParsedInstance{
			ProcessorUnit: pl.ProcessorUnit,
			Status:        status,
			JobID:         raw.JobID,
			Message:       raw.Message,
			Stderr:        raw.Stderr,
			Body:          raw.Body,
			EnvVersion:    pl.Version,
			Metrics:       metrics,
			Parameters:    params,
		},
	}
}

func failed(msg string) model.ParseResult {
	return model.ParseResult{Kind: model.ParseFailed, Message: msg}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

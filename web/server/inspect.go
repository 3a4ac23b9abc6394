package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/integrator"
	"github.com/df07/go-grrt/pkg/scene"
)

// InspectRequest selects one pixel of a scene.
type InspectRequest struct {
	Scene     string `json:"scene" example:"redshift"`
	Overrides string `json:"overrides,omitempty" doc:"Run YAML applied over the scene"`
	Row       int    `json:"row" minimum:"0"`
	Col       int    `json:"col" minimum:"0"`
	MaxPoints int    `json:"max_points,omitempty" minimum:"0" doc:"Thin the path to at most this many points; 0 keeps all"`
}

// InspectResult describes the geodesic of one pixel.
type InspectResult struct {
	Row         int            `json:"row"`
	Col         int            `json:"col"`
	Alpha       float64        `json:"alpha"`
	Beta        float64        `json:"beta"`
	Value       float64        `json:"value"`
	Status      string         `json:"status"`
	Flags       []string       `json:"flags"`
	Steps       int            `json:"steps"`
	Rejected    int            `json:"rejected"`
	RadialTurns int            `json:"radial_turns"`
	PolarTurns  int            `json:"polar_turns"`
	Lambda      float64        `json:"lambda"`
	MaxDrift    float64        `json:"max_drift"`
	E           float64        `json:"energy"`
	L           float64        `json:"angular_momentum"`
	Q           float64        `json:"carter"`
	Truncated   bool           `json:"truncated"`
	Path        []PathPoint    `json:"path"`
	Samples     []SampleRecord `json:"samples"`
}

// PathPoint is one accepted state along the path.
type PathPoint struct {
	Lambda float64 `json:"lambda"`
	R      float64 `json:"r"`
	Theta  float64 `json:"theta"`
	Phi    float64 `json:"phi"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
}

// SampleRecord is one emitter evaluation.
type SampleRecord struct {
	Kind   string  `json:"kind" enum:"surface,volume"`
	Lambda float64 `json:"lambda"`
	R      float64 `json:"r"`
	Theta  float64 `json:"theta"`
	J      float64 `json:"j"`
	Alpha  float64 `json:"alpha"`
	G      float64 `json:"g"`
	Done   bool    `json:"done"`
}

var flagNames = []struct {
	flag core.Flags
	name string
}{
	{core.FlagStepLimit, "step-limit"},
	{core.FlagDiverged, "diverged"},
	{core.FlagPlanar, "planar"},
	{core.FlagOpaque, "opaque"},
}

func flagList(f core.Flags) []string {
	names := []string{}
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return names
}

// inspectPixel traces one pixel of sc and converts the trace for the API.
func inspectPixel(sc *scene.Scene, row, col, maxPoints int) InspectResult {
	task := sc.Camera.Task(row, col)
	in := sc.Pipeline.Inspect(task, maxPoints)

	res := InspectResult{
		Row:         row,
		Col:         col,
		Alpha:       task.Alpha,
		Beta:        task.Beta,
		Value:       in.Result.Value,
		Status:      in.Result.Status.String(),
		Flags:       flagList(in.Result.Flags),
		Steps:       in.Context.Steps,
		Rejected:    in.Context.Rejected,
		RadialTurns: in.Context.RadialTurns,
		PolarTurns:  in.Context.PolarTurns,
		Lambda:      in.Context.Lambda,
		MaxDrift:    in.Context.MaxDrift,
		E:           in.Constants.E,
		L:           in.Constants.L,
		Q:           in.Constants.Q,
		Truncated:   in.Truncated,
		Path:        make([]PathPoint, 0, len(in.Path)),
		Samples:     make([]SampleRecord, 0, len(in.Samples)),
	}
	for _, p := range in.Path {
		res.Path = append(res.Path, PathPoint{
			Lambda: p.Lambda, R: p.State.R, Theta: p.State.Theta, Phi: p.State.Phi,
			X: p.X, Y: p.Y, Z: p.Z,
		})
	}
	for _, s := range in.Samples {
		res.Samples = append(res.Samples, sampleRecord(s))
	}
	return res
}

func sampleRecord(s integrator.SampleRecord) SampleRecord {
	kind := "surface"
	if s.Sample.Kind == core.SampleVolume {
		kind = "volume"
	}
	return SampleRecord{
		Kind:   kind,
		Lambda: s.Sample.Lambda,
		R:      s.Sample.State.R,
		Theta:  s.Sample.State.Theta,
		J:      s.Emission.J,
		Alpha:  s.Emission.Alpha,
		G:      s.Emission.G,
		Done:   s.Done,
	}
}

func registerInspect(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "inspect-pixel",
		Method:      http.MethodPost,
		Path:        "/inspect",
		Summary:     "Trace one pixel and return its geodesic",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body InspectRequest
	}) (*struct {
		Body InspectResult `json:"body"`
	}, error) {
		run, err := resolveRun(input.Body.Scene, input.Body.Overrides)
		if err != nil {
			return nil, handleError(err)
		}
		sc, err := scene.New(run)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.Row >= run.Resolution || input.Body.Col >= run.Resolution {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "pixel outside the image",
				map[string]any{"row": input.Body.Row, "col": input.Body.Col, "resolution": run.Resolution})
		}
		return &struct {
			Body InspectResult `json:"body"`
		}{Body: inspectPixel(sc, input.Body.Row, input.Body.Col, input.Body.MaxPoints)}, nil
	})
}

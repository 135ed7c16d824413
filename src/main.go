package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"crosswarped.com/lattice"
	"crosswarped.com/lattice/internal/logging"
	"crosswarped.com/lattice/internal/store"
	"crosswarped.com/lattice/pkg/primitives"
)

type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	LocalOnly bool   `env:"LOCAL_ONLY" envDefault:"false"`

	Project string `env:"LATTICE_BQ_PROJECT" envDefault:"crosswarped"`
	// Table holds one row per pattern cell: pattern, x, y, z, value.
	Table string `env:"LATTICE_BQ_TABLE" envDefault:"crosswarped.Lattice.pattern_cells"`

	MaxRadius int `env:"LATTICE_MAX_RADIUS" envDefault:"12"`

	// DBPath, if set, names a SQLite database that every solved run is saved to.
	DBPath string `env:"LATTICE_DB_PATH"`
}

type Cell struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Z     int `json:"z"`
	Value int `json:"value"`
}

type GenerateLatticeRequest struct {
	// Pattern names an example stored in BigQuery. Example cells are added to it.
	Pattern       string `json:"pattern"`
	Example       []Cell `json:"example"`
	Neighbourhood string `json:"neighbourhood"`
	ExcludeVoid   bool   `json:"excludeVoid"`
	Radius        int    `json:"radius"`
	StepBudget    int    `json:"stepBudget"`
	SeedValue     int    `json:"seedValue"`
	RandomSeed    uint64 `json:"randomSeed"`
}

type GenerateLatticeResponse struct {
	Success    bool   `json:"success"`
	Status     string `json:"status"`
	RunID      string `json:"runId,omitempty"`
	Cells      []Cell `json:"cells,omitempty"`
	Steps      int    `json:"steps,omitempty"`
	Backtracks int    `json:"backtracks,omitempty"`
	Error      string `json:"error,omitempty"`
}

type server struct {
	cfg Config
	log zerolog.Logger
	db  *store.DB // nil when runs are not persisted

	// loadPattern fetches a named example; nil disables named patterns.
	loadPattern func(ctx context.Context, name string) ([]primitives.Placement, error)
}

func (s *server) getPattern(ctx context.Context, name string) ([]primitives.Placement, error) {
	client, err := bigquery.NewClient(ctx, s.cfg.Project)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	defer client.Close()

	q := client.Query(fmt.Sprintf("SELECT x, y, z, value FROM `%s` WHERE pattern = @pattern", s.cfg.Table))
	q.Location = "US"
	q.Parameters = []bigquery.QueryParameter{{Name: "pattern", Value: name}}

	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("q.Run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("job.Wait: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("status.Err: %w", err)
	}
	it, err := job.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("job.Read: %w", err)
	}

	var cells []primitives.Placement
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("it.Next: %w", err)
		}

		var ints [4]int64
		for i := range ints {
			n, ok := row[i].(int64)
			if !ok {
				return nil, fmt.Errorf("row[%d] is not an integer: %v", i, row[i])
			}
			ints[i] = n
		}
		c := Cell{X: int(ints[0]), Y: int(ints[1]), Z: int(ints[2]), Value: int(ints[3])}
		p, err := c.placement()
		if err != nil {
			return nil, err
		}
		cells = append(cells, p)
	}
	return cells, nil
}

func (c Cell) placement() (primitives.Placement, error) {
	if c.Value < 1 || c.Value > 0xffff {
		return primitives.Placement{}, fmt.Errorf("value %d at (%d, %d, %d) must be between 1 and 65535", c.Value, c.X, c.Y, c.Z)
	}
	return primitives.Placement{
		Position: primitives.Position{X: c.X, Y: c.Y, Z: c.Z},
		Value:    primitives.Value(c.Value),
	}, nil
}

func (s *server) execute(ctx context.Context, req GenerateLatticeRequest) (*lattice.Lattice, error) {
	if req.Radius < 0 {
		return nil, fmt.Errorf("radius must not be negative")
	}
	if req.Radius > s.cfg.MaxRadius {
		return nil, fmt.Errorf("radius must be at most %d", s.cfg.MaxRadius)
	}
	if req.StepBudget < 0 {
		return nil, fmt.Errorf("stepBudget must not be negative")
	}
	if req.SeedValue < 0 || req.SeedValue > 0xffff {
		return nil, fmt.Errorf("seedValue must be between 0 and 65535")
	}

	var offsets []primitives.Offset
	switch req.Neighbourhood {
	case "4":
		offsets = primitives.Offsets4
	case "", "6":
		offsets = primitives.Offsets6
	default:
		return nil, fmt.Errorf("neighbourhood must be \"4\" or \"6\", got %q", req.Neighbourhood)
	}

	var example []primitives.Placement
	if req.Pattern != "" {
		if s.loadPattern == nil {
			return nil, fmt.Errorf("named patterns are not available")
		}
		cells, err := s.loadPattern(ctx, req.Pattern)
		if err != nil {
			return nil, fmt.Errorf("getPattern: %w", err)
		}
		s.log.Info().Str("pattern", req.Pattern).Int("cells", len(cells)).Msg("pattern loaded")
		example = append(example, cells...)
	}
	for _, c := range req.Example {
		p, err := c.placement()
		if err != nil {
			return nil, err
		}
		example = append(example, p)
	}
	if len(example) == 0 {
		return nil, fmt.Errorf("example must not be empty")
	}

	randomSeed := req.RandomSeed
	if randomSeed == 0 {
		randomSeed = uint64(time.Now().UnixNano())
	}

	deadline, ok := ctx.Deadline()
	timeout := 1 * time.Minute
	if ok {
		timeout = time.Until(deadline) - 5*time.Second
		s.log.Debug().Dur("timeout", timeout).Msg("setting timeout")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := s.log.With().Uint64("randomSeed", randomSeed).Logger()
	gen := lattice.CreateGenerator(
		example,
		rand.New(rand.NewPCG(randomSeed, randomSeed>>1)),
		lattice.GeneratorParams{
			Offsets:     offsets,
			ExcludeVoid: req.ExcludeVoid,
			Radius:      req.Radius,
			StepBudget:  req.StepBudget,
			SeedValue:   primitives.Value(req.SeedValue),
			Logger:      &logger,
		},
	)
	return gen.Build(ctx)
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Content-Type", "application/json")
}

func (s *server) generateLattice(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	// CORS preflight
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		fmt.Fprintf(w, `{"success": false, "error": "Method %s not allowed"}`, r.Method)
		return
	}

	var req GenerateLatticeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Warn().Err(err).Msg("invalid JSON body")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(GenerateLatticeResponse{
			Status: lattice.StatusFailed.String(),
			Error:  fmt.Sprintf("Invalid JSON: %v", err),
		})
		return
	}

	l, err := s.execute(r.Context(), req)

	response := GenerateLatticeResponse{
		Success: err == nil,
		Status:  lattice.StatusOf(err).String(),
	}
	if err != nil {
		response.Error = err.Error()
		if errors.Is(err, lattice.ErrInvalidRule) || errors.Is(err, lattice.ErrInvalidParams) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}
	} else {
		response.Steps = l.Stats().Steps
		response.Backtracks = l.Stats().Backtracks
		for _, p := range l.Placements() {
			response.Cells = append(response.Cells, Cell{X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z, Value: int(p.Value)})
		}
		if s.db != nil {
			response.RunID = s.saveRun(r.Context(), req, l)
		}
		s.log.Info().Str("runId", response.RunID).Int("cells", len(response.Cells)).Msg("lattice generated")
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log.Error().Err(err).Msg("encode response")
	}
}

// saveRun stores l and returns its id, or "" if it could not be saved.
func (s *server) saveRun(ctx context.Context, req GenerateLatticeRequest, l *lattice.Lattice) string {
	name := req.Pattern
	if name == "" {
		name = "inline"
	}
	run := &store.Run{
		Pattern:    name,
		Radius:     l.Radius(),
		Seed:       l.Stats().Seed,
		Steps:      l.Stats().Steps,
		Backtracks: l.Stats().Backtracks,
		Cells:      l.Placements(),
	}
	if err := s.db.SaveRun(ctx, run); err != nil {
		s.log.Error().Err(err).Msg("save run")
		return ""
	}
	return run.ID.String()
}

func main() {
	logger, err := logging.FromEnv("generate-lattice")
	if err != nil {
		panic(err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		logger.Fatal().Err(err).Msg("parse config")
	}

	s := &server{cfg: cfg, log: logger}
	if cfg.DBPath != "" {
		if s.db, err = store.Open(cfg.DBPath); err != nil {
			logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
		}
		defer s.db.Close()
	}
	s.loadPattern = s.getPattern
	funcframework.RegisterHTTPFunction("/generate-lattice", s.generateLattice)

	hostname := ""
	if cfg.LocalOnly {
		hostname = "127.0.0.1"
	}
	logger.Info().Str("host", hostname).Str("port", cfg.Port).Msg("starting")
	if err := funcframework.StartHostPort(hostname, cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("funcframework.StartHostPort")
	}
}

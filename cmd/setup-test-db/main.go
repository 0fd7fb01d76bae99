// Package main seeds a test database from a YAML fixture. Answers are replayed through
// the engine itself, so the resulting mistake records, weak points and dashboards are
// exactly what production traffic would have produced.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"quizinsight/internal/config"
	"quizinsight/internal/database"
	"quizinsight/internal/di"
	"quizinsight/internal/observability"
	"quizinsight/internal/services"
	contextutils "quizinsight/internal/utils"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Fixture is the seed file layout
type Fixture struct {
	Users      []string           `yaml:"users" validate:"required,min=1,dive,required"`
	Quizzes    []FixtureQuiz      `yaml:"quizzes" validate:"dive"`
	Answers    []FixtureAnswer    `yaml:"answers" validate:"dive"`
	Placements []FixturePlacement `yaml:"placements" validate:"dive"`
}

// FixtureQuiz is a quiz referenced by key from answers. Difficulty is empty for unplaced quizzes.
type FixtureQuiz struct {
	Key        string `yaml:"key" validate:"required"`
	Kind       string `yaml:"kind" validate:"required,oneof=grammar vocabulary unclassified"`
	Topic      string `yaml:"topic"`
	Tense      string `yaml:"tense"`
	Difficulty string `yaml:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
}

// FixtureAnswer is one submitted answer, replayed in file order
type FixtureAnswer struct {
	User    string `yaml:"user" validate:"required"`
	Quiz    string `yaml:"quiz" validate:"required"`
	Answer  string `yaml:"answer"`
	Correct bool   `yaml:"correct"`
}

// FixturePlacement scores a placement set file for a user
type FixturePlacement struct {
	User    string         `yaml:"user" validate:"required"`
	SetFile string         `yaml:"set_file" validate:"required"`
	Answers map[int]string `yaml:"answers"`
}

func main() {
	ctx := context.Background()

	dataPath := flag.String("data", "cmd/setup-test-db/testdata/seed.yaml", "seed fixture")
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if testURL := os.Getenv("TEST_DATABASE_URL"); testURL != "" {
		cfg.Database.URL = testURL
	}

	logLevel := zapcore.WarnLevel
	if *verbose {
		logLevel = zapcore.InfoLevel
	}
	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "setup-test-db", logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer observability.Shutdown(ctx, tp, mp, logger)

	fixture, err := loadFixture(*dataPath)
	if err != nil {
		logger.Error(ctx, "Failed to load fixture", err, map[string]interface{}{"path": *dataPath})
		os.Exit(1)
	}

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, map[string]interface{}{
			"db_url": contextutils.MaskDatabaseURL(cfg.Database.URL),
		})
		os.Exit(1)
	}
	defer func() {
		if err := container.Shutdown(ctx); err != nil {
			logger.Warn(ctx, "Warning: failed to shut down services", map[string]interface{}{"error": err.Error()})
		}
	}()

	if err := seed(ctx, container, fixture, filepath.Dir(*dataPath), logger); err != nil {
		logger.Error(ctx, "Failed to seed test database", err)
		_ = container.Shutdown(ctx)
		os.Exit(1)
	}
	fmt.Printf("Seeded %d users, %d quizzes, %d answers and %d placements\n",
		len(fixture.Users), len(fixture.Quizzes), len(fixture.Answers), len(fixture.Placements))
}

// loadFixture reads and validates a fixture, including its cross references
func loadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to read fixture %s", path)
	}
	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, contextutils.InvalidInputf("invalid fixture %s: %v", path, err)
	}
	if err := contextutils.ValidateStruct(&fixture); err != nil {
		return nil, err
	}

	users := map[string]bool{}
	for _, u := range fixture.Users {
		users[u] = true
	}
	quizzes := map[string]bool{}
	for _, q := range fixture.Quizzes {
		if quizzes[q.Key] {
			return nil, contextutils.InvalidInputf("duplicate quiz key %q", q.Key)
		}
		quizzes[q.Key] = true
	}
	for i, a := range fixture.Answers {
		if !users[a.User] {
			return nil, contextutils.InvalidInputf("answer %d references unknown user %q", i, a.User)
		}
		if !quizzes[a.Quiz] {
			return nil, contextutils.InvalidInputf("answer %d references unknown quiz %q", i, a.Quiz)
		}
	}
	for i, p := range fixture.Placements {
		if !users[p.User] {
			return nil, contextutils.InvalidInputf("placement %d references unknown user %q", i, p.User)
		}
	}
	return &fixture, nil
}

func seed(ctx context.Context, container *di.ServiceContainer, fixture *Fixture, baseDir string, logger *observability.Logger) error {
	db := container.GetDatabase()
	if err := database.ResetAllData(ctx, db); err != nil {
		return err
	}

	userIDs, err := insertUsers(ctx, db, fixture.Users)
	if err != nil {
		return err
	}
	quizIDs, err := insertQuizzes(ctx, db, fixture.Quizzes)
	if err != nil {
		return err
	}

	ingestor, err := container.GetAnswerIngestor()
	if err != nil {
		return err
	}
	for _, a := range fixture.Answers {
		if _, err := ingestor.Submit(ctx, userIDs[a.User], quizIDs[a.Quiz], a.Answer, a.Correct); err != nil {
			return contextutils.WrapErrorf(err, "failed to submit answer of %s to %s", a.User, a.Quiz)
		}
	}

	placement, err := container.GetPlacementService()
	if err != nil {
		return err
	}
	for _, p := range fixture.Placements {
		setPath := p.SetFile
		if !filepath.IsAbs(setPath) {
			setPath = filepath.Join(baseDir, setPath)
		}
		data, err := os.ReadFile(setPath)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to read placement set %s", setPath)
		}
		set, err := services.ParsePlacementImport(data, services.FormatFromPath(setPath))
		if err != nil {
			return err
		}
		if _, err := placement.ScoreForUser(ctx, userIDs[p.User], set, p.Answers); err != nil {
			return err
		}
	}

	classifier, err := container.GetClassifier()
	if err != nil {
		return err
	}
	batch := container.GetConfig().Engine.Classifier.BatchSize
	for {
		n, err := classifier.ClassifyPending(ctx, batch)
		if err != nil {
			return err
		}
		if n < batch {
			break
		}
	}

	aggregator, err := container.GetDashboardAggregator()
	if err != nil {
		return err
	}
	recomputed, err := aggregator.RecomputeActiveSince(ctx, time.Time{})
	if err != nil {
		return err
	}
	logger.Info(ctx, "Test database seeded", map[string]interface{}{"dashboards": recomputed})
	return nil
}

func insertUsers(ctx context.Context, db *sql.DB, usernames []string) (map[string]int, error) {
	ids := make(map[string]int, len(usernames))
	for _, name := range usernames {
		var id int
		if err := db.QueryRowContext(ctx, `INSERT INTO users (username) VALUES ($1) RETURNING id`, name).Scan(&id); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to insert user %s", name)
		}
		ids[name] = id
	}
	return ids, nil
}

func insertQuizzes(ctx context.Context, db *sql.DB, quizzes []FixtureQuiz) (map[string]int, error) {
	ids := make(map[string]int, len(quizzes))
	for _, q := range quizzes {
		var id int
		err := db.QueryRowContext(ctx, `
			INSERT INTO quizzes (kind, topic, tense, difficulty)
			VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''))
			RETURNING id
		`, q.Kind, q.Topic, q.Tense, q.Difficulty).Scan(&id)
		if err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to insert quiz %s", q.Key)
		}
		ids[q.Key] = id
	}
	return ids, nil
}

// Package schema provisions the together database: it makes sure every
// collection and index exists and optionally seeds demo accounts.
package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"together/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Sentinel errors returned by Store implementations.
var (
	ErrDuplicate        = errors.New("duplicate key")
	ErrCollectionExists = errors.New("collection already exists")
)

// CollectionSpec names a collection and the document type stored in it.
type CollectionSpec struct {
	Name  string
	Model any
}

// IndexSpec declares a single index.
type IndexSpec struct {
	Collection string
	Keys       bson.D
	Unique     bool
}

// Name returns the name MongoDB assigns by default, e.g. "email_1".
func (s IndexSpec) Name() string {
	parts := make([]string, 0, len(s.Keys)*2)
	for _, k := range s.Keys {
		parts = append(parts, k.Key, fmt.Sprint(k.Value))
	}
	return strings.Join(parts, "_")
}

func (s IndexSpec) String() string {
	if s.Unique {
		return s.Collection + "." + s.Name() + " (unique)"
	}
	return s.Collection + "." + s.Name()
}

var Collections = []CollectionSpec{
	{Name: "users", Model: models.User{}},
	{Name: "events", Model: models.Event{}},
	{Name: "messages", Model: models.Message{}},
	{Name: "scheduled_messages", Model: models.ScheduledMessage{}},
	{Name: "analyzed_messages", Model: models.AnalyzedMessage{}},
	{Name: "relationship_metrics", Model: models.RelationshipMetric{}},
	{Name: "daily_question", Model: models.DailyQuestion{}},
}

var Indexes = []IndexSpec{
	{Collection: "users", Keys: bson.D{{Key: "email", Value: 1}}, Unique: true},
	{Collection: "events", Keys: bson.D{{Key: "user_id", Value: 1}}},
	{Collection: "events", Keys: bson.D{{Key: "start_time", Value: 1}}},
	{Collection: "messages", Keys: bson.D{{Key: "sender_id", Value: 1}}},
	{Collection: "messages", Keys: bson.D{{Key: "receiver_id", Value: 1}}},
	{Collection: "scheduled_messages", Keys: bson.D{{Key: "scheduled_time", Value: 1}}},
	{Collection: "scheduled_messages", Keys: bson.D{{Key: "sender_id", Value: 1}}},
	{Collection: "analyzed_messages", Keys: bson.D{{Key: "message_id", Value: 1}}, Unique: true},
	{Collection: "daily_question", Keys: bson.D{{Key: "date", Value: 1}}, Unique: true},
}

// Store is the storage surface the initializer needs.
type Store interface {
	CollectionNames(ctx context.Context) ([]string, error)
	// CreateCollection returns ErrCollectionExists when name is taken.
	CreateCollection(ctx context.Context, name string) error
	// CreateIndex must succeed when an identical index already exists.
	CreateIndex(ctx context.Context, spec IndexSpec) (string, error)
	// InsertUser returns an error wrapping ErrDuplicate on a unique violation.
	InsertUser(ctx context.Context, user *models.User) error
	LinkPartner(ctx context.Context, email string) (bool, error)
}

// Report summarizes one initialization run.
type Report struct {
	CollectionsCreated []string
	IndexesEnsured     []string
	UsersSeeded        []string
	UsersSkipped       []string
	PartnersLinked     []string
}

type Initializer struct {
	store        Store
	logger       *slog.Logger
	seeds        []models.User
	linkPartners bool
}

type Option func(*Initializer)

// WithSeedUsers makes Run insert the given users after the indexes exist.
func WithSeedUsers(users []models.User) Option {
	return func(i *Initializer) {
		i.seeds = users
	}
}

// WithPartnerLinking makes Run resolve partner_email to partner_id for the
// seeded accounts.
func WithPartnerLinking(enabled bool) Option {
	return func(i *Initializer) {
		i.linkPartners = enabled
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Initializer {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Initializer{store: store, logger: logger}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run ensures collections, then indexes, then seeds. Only collection and
// index failures are returned; seeding problems are logged.
func (i *Initializer) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	created, collErr := i.EnsureCollections(ctx)
	report.CollectionsCreated = created

	ensured, idxErr := i.EnsureIndexes(ctx)
	report.IndexesEnsured = ensured

	if len(i.seeds) > 0 {
		report.UsersSeeded, report.UsersSkipped = i.SeedUsers(ctx)
		if i.linkPartners {
			report.PartnersLinked = i.LinkPartners(ctx)
		}
	}

	err := errors.Join(collErr, idxErr)
	i.logger.Info("database initialization complete",
		"collections_created", len(report.CollectionsCreated),
		"indexes", len(report.IndexesEnsured),
		"users_seeded", len(report.UsersSeeded),
		"ok", err == nil,
	)
	return report, err
}

// EnsureCollections creates every collection in Collections that does not
// exist yet and returns the names it created.
func (i *Initializer) EnsureCollections(ctx context.Context) ([]string, error) {
	existing := map[string]bool{}
	names, err := i.store.CollectionNames(ctx)
	if err != nil {
		// Fall back to create-and-tolerate-exists for every collection.
		i.logger.Warn("could not list collections", "error", err)
	}
	for _, n := range names {
		existing[n] = true
	}

	var created []string
	var errs []error
	for _, c := range Collections {
		if existing[c.Name] {
			continue
		}
		err := i.store.CreateCollection(ctx, c.Name)
		switch {
		case errors.Is(err, ErrCollectionExists):
			continue
		case err != nil:
			i.logger.Error("failed to create collection", "collection", c.Name, "error", err)
			errs = append(errs, fmt.Errorf("create collection %s: %w", c.Name, err))
			continue
		}
		i.logger.Info("created collection", "collection", c.Name)
		created = append(created, c.Name)
	}
	return created, errors.Join(errs...)
}

// EnsureIndexes declares every index in Indexes. Re-declaring an existing
// index is a no-op on the server side.
func (i *Initializer) EnsureIndexes(ctx context.Context) ([]string, error) {
	var ensured []string
	var errs []error
	for _, spec := range Indexes {
		name, err := i.store.CreateIndex(ctx, spec)
		if err != nil {
			i.logger.Error("failed to create index", "index", spec.String(), "error", err)
			errs = append(errs, fmt.Errorf("create index %s: %w", spec, err))
			continue
		}
		ensured = append(ensured, spec.Collection+"."+name)
	}
	return ensured, errors.Join(errs...)
}

// SeedUsers inserts the configured seed users one by one. Failures never
// stop the loop.
func (i *Initializer) SeedUsers(ctx context.Context) (seeded, skipped []string) {
	for _, u := range i.seeds {
		user := u
		err := i.store.InsertUser(ctx, &user)
		switch {
		case errors.Is(err, ErrDuplicate):
			i.logger.Info("seed user already exists", "email", user.Email)
			skipped = append(skipped, user.Email)
		case err != nil:
			i.logger.Warn("seed user could not be created", "email", user.Email, "error", err)
			skipped = append(skipped, user.Email)
		default:
			i.logger.Info("created seed user", "email", user.Email)
			seeded = append(seeded, user.Email)
		}
	}
	return seeded, skipped
}

// LinkPartners fills partner_id for seed users whose partner already exists.
func (i *Initializer) LinkPartners(ctx context.Context) []string {
	var linked []string
	for _, u := range i.seeds {
		ok, err := i.store.LinkPartner(ctx, u.Email)
		if err != nil {
			i.logger.Warn("could not link partner", "email", u.Email, "error", err)
			continue
		}
		if ok {
			linked = append(linked, u.Email)
		}
	}
	return linked
}

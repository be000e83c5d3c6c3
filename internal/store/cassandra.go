package store

import (
	"embed"
	"fmt"
	"sync"
	"time"

	config "example.com/jsonblog/internal/init"
	"example.com/jsonblog/internal/models"
	"github.com/gocql/gocql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/cassandra"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

//go:embed migrations/cassandra/*.cql
var cassandraMigrations embed.FS

// the whole collection lives in one partition so it can be read back in order
const postsBucket = 0

// --- Interfaces ---

type SessionInterface interface {
	Query(stmt string, values ...interface{}) *gocql.Query
	NewBatch(batchType gocql.BatchType) *gocql.Batch
	ExecuteBatch(batch *gocql.Batch) error
	Close()
}

// --- Cassandra Implementation ---

type Cassandra struct {
	Session SessionInterface

	mu     sync.Mutex
	lastTS int64 // write timestamp of the last inserted rows, in microseconds
	now    func() time.Time
}

// NewCassandra ensures the keyspace, applies migrations and opens a session.
func NewCassandra(cfg *config.Config) (*Cassandra, error) {
	if err := ensureKeyspace(cfg); err != nil {
		return nil, fmt.Errorf("failed to ensure keyspace: %w", err)
	}

	if err := runMigrations(cfg); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cluster := gocql.NewCluster(cfg.CassandraHost)
	cluster.Keyspace = cfg.CassandraKeyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = cfg.CassandraTimeout
	cluster.ConnectTimeout = cfg.CassandraTimeout

	if cfg.CassandraUsername != "" && cfg.CassandraPassword != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.CassandraUsername,
			Password: cfg.CassandraPassword,
		}
	}

	if cfg.CassandraDC != "" {
		cluster.HostFilter = gocql.DataCentreHostFilter(cfg.CassandraDC)
	}

	sess, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Cassandra session: %w", err)
	}

	logg.Info("store", "Connected to Cassandra keyspace (host anonymized)")
	return &Cassandra{Session: sess}, nil
}

// --- Ensure keyspace exists before migrations ---

func ensureKeyspace(cfg *config.Config) error {
	cluster := gocql.NewCluster(cfg.CassandraHost)
	cluster.Keyspace = "system"
	cluster.Timeout = cfg.CassandraTimeout
	sess, err := cluster.CreateSession()
	if err != nil {
		return fmt.Errorf("failed to connect to Cassandra system keyspace: %w", err)
	}
	defer sess.Close()

	query := fmt.Sprintf(`
        CREATE KEYSPACE IF NOT EXISTS %s
        WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1};
    `, cfg.CassandraKeyspace)

	if err := sess.Query(query).Exec(); err != nil {
		return fmt.Errorf("failed to create keyspace: %w", err)
	}

	logg.Info("store", "Ensured Cassandra keyspace exists (keyspace name anonymized)")
	return nil
}

// --- Migration runner ---

func runMigrations(cfg *config.Config) error {
	src, err := iofs.New(cassandraMigrations, "migrations/cassandra")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	dbURL := fmt.Sprintf(
		"cassandra://%s/%s?x-migrations-table=schema_migrations&x-multi-statement=true",
		cfg.CassandraHost, cfg.CassandraKeyspace,
	)

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}

	if err == migrate.ErrNoChange {
		logg.Info("store", "No new migrations to apply")
	} else {
		logg.Info("store", "Migrations applied successfully")
	}
	return nil
}

// --- Post operations ---

// Rows are written in batches that stay well below Cassandra's default
// batch_size_fail_threshold of 50KB.
const (
	maxBatchRows  = 100
	maxBatchBytes = 32 << 10
	rowOverhead   = 64
)

// rowScanner is the part of *gocql.Iter used by Load.
type rowScanner interface {
	Scan(dest ...interface{}) bool
	Close() error
}

// Load returns the collection in position order.
func (c *Cassandra) Load() ([]models.Post, error) {
	iter := c.Session.Query(
		`SELECT id, author, title, content, likes FROM posts WHERE bucket = ?`,
		postsBucket,
	).Iter()

	res, err := scanPosts(iter)
	if err != nil {
		logg.Error("store", "Failed to load posts", err)
		return nil, errors.Wrap(err, "load posts")
	}

	logg.Debug("store", fmt.Sprintf("Loaded %d posts from Cassandra", len(res)))
	return res, nil
}

func scanPosts(rows rowScanner) ([]models.Post, error) {
	res := []models.Post{}
	for {
		var p models.Post
		var likes *int
		if !rows.Scan(&p.ID, &p.Author, &p.Title, &p.Content, &likes) {
			break
		}
		p.Likes = likes
		res = append(res, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return res, nil
}

// Save replaces the partition. The first batch deletes the partition at ts
// and every row is inserted at ts+1, so new rows are never shadowed by the
// delete. Timestamps grow strictly across saves, so an older save can never
// outlive a newer one. The rows are split into several single-partition
// batches; if one fails the error is returned and the collection may be cut
// short until the next successful save.
func (c *Cassandra) Save(posts []models.Post) error {
	ts := c.nextTimestamp()

	for n, batch := range c.saveBatches(posts, ts) {
		if err := c.Session.ExecuteBatch(batch); err != nil {
			logg.Error("store", fmt.Sprintf("Failed to save posts (batch %d)", n), err)
			return errors.Wrap(err, "save posts")
		}
	}

	logg.Debug("store", fmt.Sprintf("Saved %d posts to Cassandra", len(posts)))
	return nil
}

func (c *Cassandra) saveBatches(posts []models.Post, ts int64) []*gocql.Batch {
	batch := c.Session.NewBatch(gocql.UnloggedBatch)
	batch.Query(`DELETE FROM posts USING TIMESTAMP ? WHERE bucket = ?`, ts, postsBucket)
	batches := []*gocql.Batch{batch}

	rows, size := 0, 0
	for i, p := range posts {
		rowSize := len(p.ID) + len(p.Author) + len(p.Title) + len(p.Content) + rowOverhead
		if rows > 0 && (rows >= maxBatchRows || size+rowSize > maxBatchBytes) {
			batch = c.Session.NewBatch(gocql.UnloggedBatch)
			batches = append(batches, batch)
			rows, size = 0, 0
		}
		batch.Query(`
			INSERT INTO posts (bucket, position, id, author, title, content, likes)
			VALUES (?, ?, ?, ?, ?, ?, ?) USING TIMESTAMP ?`,
			postsBucket, i, p.ID, p.Author, p.Title, p.Content, p.Likes, ts+1,
		)
		rows++
		size += rowSize
	}
	return batches
}

// nextTimestamp returns max(now, last insert + 1) and reserves the
// following microsecond for this save's inserts.
func (c *Cassandra) nextTimestamp() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now
	if c.now != nil {
		now = c.now
	}
	ts := now().UnixMicro()
	if ts <= c.lastTS {
		ts = c.lastTS + 1
	}
	c.lastTS = ts + 1
	return ts
}

// Close gracefully closes Cassandra session.
func (c *Cassandra) Close() {
	if c.Session != nil {
		c.Session.Close()
		logg.Info("store", "Cassandra session closed")
	}
}

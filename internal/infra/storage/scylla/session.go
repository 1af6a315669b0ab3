package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/gocql/gocql"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Config holds Scylla connection settings.
type Config struct {
	Hosts             []string
	Keyspace          string
	Timeout           time.Duration
	Username          string
	Password          string
	ReplicationFactor int
}

// NewSession ensures schema exists and returns a connected Scylla session.
func NewSession(cfg Config, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(cfg.Keyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %s", cfg.Keyspace)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}

	baseCluster := gocql.NewCluster(cfg.Hosts...)
	baseCluster.Timeout = cfg.Timeout
	setAuth(baseCluster, cfg)

	baseSession, err := baseCluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer baseSession.Close()

	if err := ensureKeyspace(context.Background(), baseSession, cfg); err != nil {
		return nil, err
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Timeout = cfg.Timeout
	cluster.Keyspace = cfg.Keyspace
	setAuth(cluster, cfg)

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", cfg.Keyspace, err)
	}
	if err := ensureTables(context.Background(), session, cfg); err != nil {
		session.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", cfg.Hosts, "keyspace", cfg.Keyspace)
	}
	return session, nil
}

func ensureKeyspace(ctx context.Context, session *gocql.Session, cfg Config) error {
	cql := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		cfg.Keyspace, cfg.ReplicationFactor,
	)
	if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	return nil
}

func ensureTables(ctx context.Context, session *gocql.Session, cfg Config) error {
	conversations := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.conversations (
	id bigint PRIMARY KEY,
	listing_id bigint,
	buyer_id bigint,
	seller_id bigint,
	created_at timestamp,
	last_message_at timestamp,
	last_message_text text
);`, cfg.Keyspace)
	if err := session.Query(conversations).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create conversations table: %w", err)
	}

	byKey := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.conversations_by_key (
	listing_id bigint,
	buyer_id bigint,
	seller_id bigint,
	conversation_id bigint,
	PRIMARY KEY ((listing_id, buyer_id, seller_id))
);`, cfg.Keyspace)
	if err := session.Query(byKey).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create conversations_by_key table: %w", err)
	}

	messages := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.messages (
	conversation_id bigint,
	message_id bigint,
	sender_id bigint,
	kind text,
	content text,
	image_urls list<text>,
	read boolean,
	created_at timestamp,
	PRIMARY KEY (conversation_id, message_id)
) WITH CLUSTERING ORDER BY (message_id ASC);`, cfg.Keyspace)
	if err := session.Query(messages).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}
	return nil
}

func setAuth(cluster *gocql.ClusterConfig, cfg Config) {
	if cfg.Username == "" {
		return
	}
	cluster.Authenticator = gocql.PasswordAuthenticator{
		Username: cfg.Username,
		Password: cfg.Password,
	}
	// avoid long stalls on auth/connect
	cluster.ConnectTimeout = cfg.Timeout
	cluster.Timeout = cfg.Timeout
}

package mongodb

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/huynhanx03/go-thumb/pkg/settings"
	"github.com/huynhanx03/go-thumb/pkg/utils"
)

const (
	defaultMaxPoolSize     = 20
	defaultMinPoolSize     = 2
	defaultMaxConnIdleTime = 60
	defaultTimeout         = 10
)

var ErrPingFailed = errors.New("failed to ping mongodb")

type MongoEngine struct {
	client *mongo.Client
	config *settings.MongoDB
}

// NewConnection connects to MongoDB and pings the primary.
func NewConnection(ctx context.Context, cfg *settings.MongoDB) (*MongoEngine, error) {
	engine := &MongoEngine{config: cfg}
	engine.setDefaultConfig()

	opts := options.Client().
		ApplyURI(URI(cfg)).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(utils.ToDuration(int(cfg.MaxConnIdleTime))).
		SetTimeout(utils.ToDuration(cfg.Timeout))

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connect mongodb")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: %v", ErrPingFailed, err)
	}

	engine.client = client
	return engine, nil
}

func (e *MongoEngine) setDefaultConfig() {
	if e.config.MaxPoolSize == 0 {
		e.config.MaxPoolSize = defaultMaxPoolSize
	}
	if e.config.MinPoolSize == 0 {
		e.config.MinPoolSize = defaultMinPoolSize
	}
	if e.config.MaxConnIdleTime == 0 {
		e.config.MaxConnIdleTime = defaultMaxConnIdleTime
	}
	if e.config.Timeout == 0 {
		e.config.Timeout = defaultTimeout
	}
}

// URI builds a mongodb:// connection string from cfg.
func URI(cfg *settings.MongoDB) string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/",
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	q := url.Values{}
	if cfg.ReplicaSet != "" {
		q.Set("replicaSet", cfg.ReplicaSet)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Database returns the configured database handle.
func (e *MongoEngine) Database() *mongo.Database {
	return e.client.Database(e.config.Database)
}

// Client returns the underlying client (Escape hatch)
func (e *MongoEngine) Client() *mongo.Client {
	return e.client
}

func (e *MongoEngine) Close(ctx context.Context) error {
	if e.client == nil {
		return nil
	}
	return e.client.Disconnect(ctx)
}

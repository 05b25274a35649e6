package events

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ActivityCollection holds one document per consumed event
const ActivityCollection = "activity"

// MongoActivityStore writes events to MongoDB
type MongoActivityStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoActivityStore connects to uri and pings it
func NewMongoActivityStore(ctx context.Context, uri, dbName string) (*MongoActivityStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &MongoActivityStore{client: client, coll: client.Database(dbName).Collection(ActivityCollection)}, nil
}

func (s *MongoActivityStore) Publish(ctx context.Context, ev Event) error {
	_, err := s.coll.InsertOne(ctx, ev)
	return err
}

// Close disconnects the client
func (s *MongoActivityStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// FileActivityLog appends one line per event to a file
type FileActivityLog struct {
	mu   sync.Mutex
	path string
}

// NewFileActivityLog returns a log writing to path, creating its directory
func NewFileActivityLog(path string) (*FileActivityLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir logs: %w", err)
	}
	return &FileActivityLog{path: path}, nil
}

func (l *FileActivityLog) Publish(_ context.Context, ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open activity log: %w", err)
	}
	defer f.Close()

	_, err = f.WriteString(FormatLine(ev))
	return err
}

// FormatLine renders ev as a single log line
func FormatLine(ev Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | %s=%d", ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.Entity, ev.EntityID)
	if ev.From != "" || ev.To != "" {
		fmt.Fprintf(&b, " | %s -> %s", ev.From, ev.To)
	}
	if ev.Flagged {
		b.WriteString(" | flagged")
	}
	if ev.ActorID != 0 {
		fmt.Fprintf(&b, " | actor=%d", ev.ActorID)
	}
	if ev.Summary != "" {
		fmt.Fprintf(&b, " | %q", ev.Summary)
	}
	b.WriteString("\n")
	return b.String()
}

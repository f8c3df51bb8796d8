// Package audit keeps a trail of processing activity in MongoDB: incoming
// request bodies, job-table notifications, and (optionally) row-level changes
// captured over logical replication. Audit failures are logged and never
// block request handling.
package audit

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// RequestKeyHeader carries an optional caller-supplied correlation key.
const RequestKeyHeader = "X-Request-Key"

const collectionName = "audit"

var mongoDB *mongo.Database

// Init points the package at an audit database. A nil database disables
// auditing; every record is then silently skipped.
func Init(db *mongo.Database) {
	mongoDB = db
}

type Entity struct {
	Key    string
	Server string
	Data   string
	Type   string
}

// Notify copies the request body into the audit collection before handing the
// request on. The body is restored for the next handler.
func Notify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(RequestKeyHeader)

		requestBytes, err := io.ReadAll(r.Body)
		if err != nil {
			log.WithError(err).Error("Failed to read request body for audit")
			http.Error(w, "unreadable request body", http.StatusBadRequest)
			return
		}
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(requestBytes))

		if err := InsertEntity(r.Context(), key, string(requestBytes), "request"); err != nil {
			log.WithError(err).Warn("Error inserting audit entity")
		}

		next.ServeHTTP(w, r)
	})
}

// InsertEntity records one audit row. It is a no-op when auditing is disabled.
func InsertEntity(ctx context.Context, key string, data string, entityType string) error {
	if mongoDB == nil {
		return nil
	}

	name, err := os.Hostname()
	if err != nil {
		return err
	}

	entity := Entity{
		Key:    key,
		Server: name,
		Data:   data,
		Type:   entityType,
	}

	_, err = mongoDB.Collection(collectionName).InsertOne(ctx, &entity)
	return err
}

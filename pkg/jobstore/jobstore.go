// Package jobstore persists processing jobs in Postgres. Every write also
// fires a NOTIFY on the jobs channel so observers can follow activity.
package jobstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ganeshsharma25-official/gdal-image-service/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rotisserie/eris"
)

// NotifyChannel is the Postgres channel job events are published on.
const NotifyChannel = "jobs"

const schema = `
create table if not exists jobs (
	id uuid primary key,
	workspace text not null,
	layer text not null,
	layer_type text not null,
	status text not null,
	file_path text,
	error_message text,
	created_at timestamptz not null,
	finished_at timestamptz
)`

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, eris.Wrap(err, "ensure jobs table")
	}
	return &Store{pool: pool}, nil
}

// Create inserts a running job row and returns it.
func (s *Store) Create(ctx context.Context, workspace, layer, layerType string) (*models.Job, error) {
	job := &models.Job{
		Id:        uuid.New().String(),
		Workspace: workspace,
		Layer:     layer,
		LayerType: layerType,
		Status:    models.JobStatusRunning,
		CreatedAt: time.Now().UTC(),
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			"insert into jobs (id, workspace, layer, layer_type, status, created_at) values ($1, $2, $3, $4, $5, $6)",
			job.Id, job.Workspace, job.Layer, job.LayerType, job.Status, job.CreatedAt)
		if err != nil {
			return err
		}
		return s.notify(ctx, tx, job)
	})
	if err != nil {
		return nil, eris.Wrap(err, "insert job")
	}

	return job, nil
}

// Finish records the terminal state of a job.
func (s *Store) Finish(ctx context.Context, job *models.Job, jobStatus, filePath, errorMessage string) error {
	now := time.Now().UTC()
	job.Status = jobStatus
	job.FilePath = filePath
	job.ErrorMessage = errorMessage
	job.FinishedAt = &now

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			"update jobs set status = $1, file_path = $2, error_message = $3, finished_at = $4 where id = $5",
			job.Status, job.FilePath, job.ErrorMessage, job.FinishedAt, job.Id)
		if err != nil {
			return err
		}
		return s.notify(ctx, tx, job)
	})
	if err != nil {
		return eris.Wrap(err, "update job")
	}

	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) notify(ctx context.Context, tx pgx.Tx, job *models.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, "select pg_notify($1, $2)", NotifyChannel, string(payload))
	return err
}

package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/pkg/dbutil"
)

var ingestLogFields = []string{"id", "sources", "chunks_added", "total_chunks", "generation", "embed_model", "ctime"}

type IngestLogRepo struct {
	db *sql.DB
}

func NewIngestLogRepo(db *sql.DB) *IngestLogRepo {
	return &IngestLogRepo{db: db}
}

func (r *IngestLogRepo) Append(ctx context.Context, item *model.IngestLog) error {
	sources, err := json.Marshal(item.Sources)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":           item.ID,
		"sources":      string(sources),
		"chunks_added": item.ChunksAdded,
		"total_chunks": item.TotalChunks,
		"generation":   int64(item.Generation),
		"embed_model":  item.EmbedModel,
		"ctime":        item.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("ingest_logs", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// ListRecent returns the newest limit entries, newest first.
func (r *IngestLogRepo) ListRecent(ctx context.Context, limit uint) ([]*model.IngestLog, error) {
	where := map[string]interface{}{
		"_orderby": "ctime desc, generation desc",
		"_limit":   []uint{0, limit},
	}
	sqlStr, args, err := builder.BuildSelect("ingest_logs", where, ingestLogFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]*model.IngestLog, 0, limit)
	for rows.Next() {
		var (
			item       model.IngestLog
			sources    string
			generation int64
		)
		if err := rows.Scan(&item.ID, &sources, &item.ChunksAdded, &item.TotalChunks, &generation, &item.EmbedModel, &item.Ctime); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sources), &item.Sources); err != nil {
			return nil, err
		}
		item.Generation = uint64(generation)
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (r *IngestLogRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args, err := builder.BuildDelete("ingest_logs", map[string]interface{}{"ctime <": cutoff})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

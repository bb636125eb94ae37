package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"student-predictor-go/models"
)

const (
	batchesKey        = "batches"            // Sorted set: batch IDs scored by creation time
	batchInfoPrefix   = "batch:"             // Hash prefix: batch:{id} -> summary fields + output csv
	recentPredictions = "predictions:recent" // List: JSON PredictionRecord, newest first
)

// RedisService stores batch outputs and recent manual predictions.
type RedisService struct {
	Client      *redis.Client
	TTL         time.Duration // lifetime of a stored batch
	RecentLimit int64         // length cap of the recent predictions list
	Log         logrus.FieldLogger
}

// NewRedisService creates a new RedisService instance
func NewRedisService(client *redis.Client, ttl time.Duration, recentLimit int64, log logrus.FieldLogger) *RedisService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if recentLimit <= 0 {
		recentLimit = 50
	}
	return &RedisService{Client: client, TTL: ttl, RecentLimit: recentLimit, Log: log}
}

// Helper to generate batch info key
func getBatchInfoKey(batchID string) string {
	return batchInfoPrefix + batchID
}

// --- Batch Operations ---

// SaveBatch stores a batch summary and its output table, expiring after TTL.
func (s *RedisService) SaveBatch(ctx context.Context, b models.BatchRecord) error {
	if b.ID == "" {
		return errors.New("batch ID cannot be empty")
	}
	key := getBatchInfoKey(b.ID)
	pipe := s.Client.TxPipeline()

	pipe.ZAdd(ctx, batchesKey, &redis.Z{Score: float64(b.CreatedAt.Unix()), Member: b.ID})
	pipe.HSet(ctx, key, map[string]interface{}{
		"id":        b.ID,
		"filename":  b.Filename,
		"schema":    b.Schema,
		"total":     b.Total,
		"accepted":  b.Accepted,
		"rejected":  b.Rejected,
		"createdAt": b.CreatedAt.UTC().Format(time.RFC3339Nano),
		"output":    b.OutputCSV,
	})
	if s.TTL > 0 {
		pipe.Expire(ctx, key, s.TTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		s.Log.WithError(err).WithField("batch_id", b.ID).Error("Error saving batch")
		return fmt.Errorf("failed to save batch to Redis: %w", err)
	}
	s.Log.WithFields(logrus.Fields{"batch_id": b.ID, "rows": b.Total}).Info("Saved batch")
	return nil
}

// GetBatch retrieves a batch by its ID. A missing or expired batch returns nil, nil.
func (s *RedisService) GetBatch(ctx context.Context, batchID string) (*models.BatchRecord, error) {
	data, err := s.Client.HGetAll(ctx, getBatchInfoKey(batchID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get batch from Redis: %w", err)
	}
	if len(data) == 0 {
		return nil, nil // Not found or expired
	}
	summary, err := parseSummary(data)
	if err != nil {
		return nil, fmt.Errorf("batch %s: %w", batchID, err)
	}
	return &models.BatchRecord{BatchSummary: summary, OutputCSV: []byte(data["output"])}, nil
}

// ListBatches returns up to limit batch summaries, newest first. IDs whose
// hash has expired are pruned from the index as they are found.
func (s *RedisService) ListBatches(ctx context.Context, limit int64) ([]models.BatchSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := s.Client.ZRevRange(ctx, batchesKey, 0, limit-1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []models.BatchSummary{}, nil
		}
		return nil, fmt.Errorf("failed to get batch IDs from Redis: %w", err)
	}

	fields := []string{"id", "filename", "schema", "total", "accepted", "rejected", "createdAt"}
	pipe := s.Client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HMGet(ctx, getBatchInfoKey(id), fields...)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get batch summaries from Redis: %w", err)
	}

	out := make([]models.BatchSummary, 0, len(ids))
	var expired []interface{}
	for i, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 || vals[0] == nil {
			expired = append(expired, ids[i])
			continue
		}
		data := make(map[string]string, len(fields))
		for j, f := range fields {
			if v, ok := vals[j].(string); ok {
				data[f] = v
			}
		}
		summary, err := parseSummary(data)
		if err != nil {
			// Log the error but continue with the others
			s.Log.WithError(err).WithField("batch_id", ids[i]).Warn("Skipping unreadable batch")
			continue
		}
		out = append(out, summary)
	}
	if len(expired) > 0 {
		if err := s.Client.ZRem(ctx, batchesKey, expired...).Err(); err != nil {
			s.Log.WithError(err).Warn("Error pruning expired batch IDs")
		}
	}
	return out, nil
}

func parseSummary(data map[string]string) (models.BatchSummary, error) {
	var (
		sum models.BatchSummary
		err error
	)
	sum.ID, sum.Filename, sum.Schema = data["id"], data["filename"], data["schema"]
	if sum.Total, err = strconv.Atoi(data["total"]); err != nil {
		return sum, fmt.Errorf("bad total: %w", err)
	}
	if sum.Accepted, err = strconv.Atoi(data["accepted"]); err != nil {
		return sum, fmt.Errorf("bad accepted: %w", err)
	}
	if sum.Rejected, err = strconv.Atoi(data["rejected"]); err != nil {
		return sum, fmt.Errorf("bad rejected: %w", err)
	}
	if sum.CreatedAt, err = time.Parse(time.RFC3339Nano, data["createdAt"]); err != nil {
		return sum, fmt.Errorf("bad createdAt: %w", err)
	}
	return sum, nil
}

// --- Prediction Operations ---

// SavePrediction pushes a manual prediction onto the capped recent list.
func (s *RedisService) SavePrediction(ctx context.Context, p models.PredictionRecord) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode prediction: %w", err)
	}
	pipe := s.Client.TxPipeline()
	pipe.LPush(ctx, recentPredictions, payload)
	pipe.LTrim(ctx, recentPredictions, 0, s.RecentLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		s.Log.WithError(err).WithField("prediction_id", p.ID).Error("Error saving prediction")
		return fmt.Errorf("failed to save prediction to Redis: %w", err)
	}
	return nil
}

// RecentPredictions returns up to n stored predictions, newest first.
func (s *RedisService) RecentPredictions(ctx context.Context, n int64) ([]models.PredictionRecord, error) {
	if n <= 0 || n > s.RecentLimit {
		n = s.RecentLimit
	}
	raw, err := s.Client.LRange(ctx, recentPredictions, 0, n-1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []models.PredictionRecord{}, nil
		}
		return nil, fmt.Errorf("failed to get predictions from Redis: %w", err)
	}
	out := make([]models.PredictionRecord, 0, len(raw))
	for _, item := range raw {
		var p models.PredictionRecord
		if err := json.Unmarshal([]byte(item), &p); err != nil {
			s.Log.WithError(err).Warn("Skipping unreadable prediction record")
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// --- Utility ---

// InitializeRedisClient creates a Redis client and checks the connection.
func InitializeRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", addr, err)
	}
	logrus.WithFields(logrus.Fields{"addr": addr, "db": db}).Info("Successfully connected to Redis")
	return rdb, nil
}

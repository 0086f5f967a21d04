package errx

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to AppError. A missing key is reported as not
// found, everything else as a persistence failure.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return &AppError{Err: err, Status: http.StatusNotFound, Code: CodeNotFound, Message: RedisNotFoundMessage}
	}
	if errors.Is(err, redis.TxFailedErr) {
		return &AppError{Err: err, Status: http.StatusConflict, Code: CodeConflict, Message: ConflictMessage}
	}
	return &AppError{Err: err, Status: http.StatusServiceUnavailable, Code: CodePersistence, Message: RedisErrorMessage}
}

// WrapSQL maps database/sql errors to AppError.
func WrapSQL(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &AppError{Err: err, Status: http.StatusNotFound, Code: CodeNotFound, Message: "checkpoint not found"}
	}
	return &AppError{Err: err, Status: http.StatusServiceUnavailable, Code: CodePersistence, Message: SQLErrorMessage}
}

// WrapQdrant maps search index errors to a retrieval backend failure.
func WrapQdrant(err error) error {
	if err == nil {
		return nil
	}
	return &AppError{Err: err, Status: http.StatusBadGateway, Code: CodeRetrievalBackend, Message: QdrantErrorMessage}
}

// Package fingerprint derives the dedup key of a unit of discovery work.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ramiqadoumi/leadflow/internal/domain"
)

// TimeBucket labels the cadence window that t falls into. Daily buckets are
// UTC calendar dates (2026-02-18); weekly buckets are ISO-8601 weeks
// (2026-W08) labelled with the ISO year.
func TimeBucket(t time.Time, cadence domain.Cadence) (string, error) {
	t = t.UTC()
	switch cadence {
	case domain.CadenceDaily:
		return t.Format("2006-01-02"), nil
	case domain.CadenceWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week), nil
	default:
		return "", fmt.Errorf("unknown cadence %q", cadence)
	}
}

// Compute returns the 64-char hex SHA-256 of the pipe-joined task tuple.
// The field order is part of the stored key and must not change.
func Compute(taskType domain.TaskType, country, language, normalizedQuery string, page int, bucket string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		string(taskType),
		country,
		language,
		normalizedQuery,
		strconv.Itoa(page),
		bucket,
	}, "|")))
	return hex.EncodeToString(sum[:])
}

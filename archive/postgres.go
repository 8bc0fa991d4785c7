// Package archive keeps a copy of every transmitted frame in Postgres, raw and
// decoded, so the ground side can be rebuilt without the radio backend.
package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/gr-butler/weathernode/payload"
	"github.com/lib/pq"
	logger "github.com/sirupsen/logrus"
)

//go:embed sql/create-table.sql
var createTableSQL string

//go:embed sql/insert-frame.sql
var insertFrameSQL string

const (
	DefaultTable = "frames"
	writeTimeout = 10 * time.Second
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type Postgres struct {
	db        execer
	conn      *sql.DB
	insert    string
	create    string
	stationID string
	bootID    uuid.UUID
	now       func() time.Time
}

// Open connects with the lib/pq driver and creates the table if needed.
func Open(ctx context.Context, dsn, stationID string, bootID uuid.UUID) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	p := newPostgres(db, DefaultTable, stationID, bootID)
	p.conn = db
	if err := p.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Infof("Archiving frames to [%v]", DefaultTable)
	return p, nil
}

func newPostgres(db execer, table, stationID string, bootID uuid.UUID) *Postgres {
	t := pq.QuoteIdentifier(table)
	return &Postgres{
		db:        db,
		insert:    fmt.Sprintf(insertFrameSQL, t),
		create:    fmt.Sprintf(createTableSQL, t),
		stationID: stationID,
		bootID:    bootID,
		now:       time.Now,
	}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, p.create); err != nil {
		return fmt.Errorf("create archive table: %w", err)
	}
	return nil
}

// Send stores one frame. It satisfies transport.Sink.
func (p *Postgres) Send(frame []byte) error {
	rec, err := payload.Decode(frame)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err = p.db.ExecContext(ctx, p.insert,
		p.stationID, p.bootID.String(), p.now().UTC(), frame,
		nullFloat(rec.Ambient[0].Temperature), nullFloat(rec.Ambient[0].Humidity),
		nullFloat(rec.Ambient[1].Temperature), nullFloat(rec.Ambient[1].Humidity),
		nullFloat(rec.Ambient[1].Pressure),
		nullFloat(rec.Ground[0]), nullFloat(rec.Ground[1]),
		int64(rec.RainCount), nullSector(rec.WindSector),
		int64(rec.BatteryMV), int64(rec.SolarMV), int64(rec.SolarMA),
		nullAux(rec.Aux[0]), nullAux(rec.Aux[1]),
	)
	if err != nil {
		return fmt.Errorf("insert frame: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

func nullSector(s uint8) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(s), Valid: s != payload.NoSector}
}

func nullAux(v uint16) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != payload.NoAux}
}

package database

import (
	"database/sql"
)

type PgWhiteboardRepository struct {
	conn *sql.DB
}

func NewPgWhiteboardRepository(dsn string) (*PgWhiteboardRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	repo := &PgWhiteboardRepository{conn: db}
	if err := repo.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (db *PgWhiteboardRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgWhiteboardRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

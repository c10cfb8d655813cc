package postgres

import (
	"context"
	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

// InitSchema creates the crawler tables if they do not exist yet.
func (g *Gateway) InitSchema(ctx context.Context) error {
	if _, err := g.pool.Exec(ctx, schemaSQL); err != nil {
		return dbError("init schema", err)
	}
	return nil
}

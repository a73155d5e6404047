// Package reader provides the Reader Registry for punchcore.
//
// The Reader Registry is the catalogue of all physical card readers known
// to an installation. It manages reader lifecycle, connection state, and
// last reported position, and backs the WebSocket handshake where each
// connecting reader identifies itself by ID.
//
// # Key Types
//
//   - Reader: A physical card reader (identity, online state, location)
//   - Location: A lat/lng pair reported by a reader
//
// # Usage
//
//	repo := reader.NewSQLiteRepository(db)
//	registry := reader.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	// Load readers into cache on startup
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	// Register a reader
//	rdr := &reader.Reader{ID: "reader-001", Name: "Main Entrance"}
//	if err := registry.CreateReader(ctx, rdr); err != nil {
//	    return err
//	}
//
//	// Connection lifecycle (from the WebSocket layer)
//	registry.SetOnline(ctx, "reader-001", true)
//	registry.UpdateLocation(ctx, "reader-001", reader.Location{Lat: 51.5, Lng: -0.12})
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected by
// a read-write mutex. The Repository implementation must also be thread-safe.
package reader

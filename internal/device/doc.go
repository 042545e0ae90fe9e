// Package device records the Dynalite entities the bridge has announced to
// the host, and the house area each one is linked to.
//
// A device row is keyed by the entity unique ID
// (dynalite_{host}_a{area}_c{channel}, _p{preset} or _room). The host
// platform seeds a row the first time it adds an entity; area assignment
// then links it to a location.Area.
//
// Registry wraps a Repository with an in-memory cache keyed by unique ID:
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//	dev, created, err := registry.EnsureDevice(ctx, device.Seed{
//	    UniqueID: "dynalite_home_a2_c1",
//	    Bridge:   "home",
//	    Name:     "Bedroom Ceiling",
//	    Category: "light",
//	})
//
// All Registry methods are safe for concurrent use.
package device

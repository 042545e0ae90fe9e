// Package location stores the house areas that Dynalite entities are
// assigned to.
//
// Area names are unique without regard to case. The bridge's areacreate
// modes look areas up by name and, in auto mode, create missing ones.
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use from multiple goroutines.
package location

// Package dataset assembles generated feature and outcome columns into an
// ordered table, applies missingness and writes the table as CSV.
//
// A Table is created once per run and is immutable apart from the
// missingness pass. Preview and DropColumn return new tables that share no
// storage with the original.
package dataset

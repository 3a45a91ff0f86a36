// Package build runs an ordered list of named steps that materialize a new
// project in a target directory.
//
// A Builder validates the target, confirms before deleting an existing
// directory, then runs every registered Step in registration order while a
// progress.Reporter shows how far along the build is. Steps receive a
// Session carrying the paths and the output sink for the run. The first step
// error stops the build; nothing is retried or rolled back.
package build

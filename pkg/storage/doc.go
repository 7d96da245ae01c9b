// Package storage writes report artifacts (HTML reports and JSON sidecars) into the
// output directory. Writes go through a temporary file and a rename so a reader never
// sees a half-written report; a later run on the same day replaces the earlier file.
package storage

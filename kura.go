// Package kura mirrors a legacy Japanese website into a tree of Markdown
// files. It follows links recursively from a seed page, resolves the page
// encoding, extracts a title and body, and writes each page with a small
// YAML header.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., goquery/, htmltomarkdown/, sqlite/).
package kura

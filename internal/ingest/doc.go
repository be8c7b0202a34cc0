// Package ingest validates submitted video sources and brings them to local
// disk.
//
// ClassifySource runs before a job exists and decides the source kind. An
// Ingester then tries the strategies registered for that kind in order
// (yt-dlp, direct HTTP download, S3-compatible object fetch) and returns the
// first success, or the last strategy's error when all of them fail.
package ingest

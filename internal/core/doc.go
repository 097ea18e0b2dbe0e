// Package core provides the business logic behind the cleaning API.
//
// This package holds all domain logic independent of the HTTP layer. Handlers
// call [Service], which coordinates accounts, stored files, the cleaning
// pipeline and persisted history.
//
// # Architecture
//
//   - Service: entry point for register, login, upload, clean, download,
//     history and report.
//   - Store: persistence of users, uploads and cleaning runs. The PostgreSQL
//     implementation lives in internal/store.
//   - FileStore: original and cleaned files on disk ([LocalFiles]).
//   - JobLimiter: bounds how many cleaning runs execute at once.
//
// # Cleaning Flow
//
//  1. Client calls [Service.Clean] with an upload id and optional prompt
//  2. The upload is loaded into a dataset (BOM stripped, UTF-8 sanitized)
//  3. The fixed pipeline fills, deduplicates and normalizes the data
//  4. The cleaned CSV is saved, then the run is recorded; a failed insert
//     removes the saved file
//
// # Error Handling
//
// Service returns errors wrapping the sentinels in errors.go together with
// dataset.ErrInvalidInput and the auth errors. [MapError] turns any of them
// into a user message with a support code:
//
//   - VAL001-VAL003: Validation errors (bad data, missing columns, bad fields)
//   - FILE001-FILE007: File errors (size, format, not found, storage)
//   - AUTH001-AUTH004: Authentication and ownership errors
//   - CLN001-CLN003: Cleaning run errors (busy, timeout, cancelled)
package core

// Package core provides the business logic for spreadsheet import and export
// of CRM records.
//
// The package holds all domain logic independent of any transport. It is
// used by the REST server, the crmctl command and tests without
// modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Import Schemas: Registered via the registry, each schema lists the
//     canonical fields of one entity with their header aliases, types,
//     identity, match strategies and export layout.
//   - Service: The main entry point for imports, exports, templates,
//     single-record writes and the expiry sweep.
//   - Reconciler: Upserts normalized records into a [Store], one row at a
//     time, reporting skipped rows instead of failing the batch.
//   - Audit: Imports, exports and record writes are written to the audit log.
//
// # Import Schemas
//
// Schemas are registered at init time using [Register]. Each [ImportSchema]
// carries everything the generic pipeline needs for one entity:
//
//	core.Register(core.ImportSchema{
//	    Entity: "customers",
//	    Label:  "Customers",
//	    Fields: []core.FieldSpec{
//	        {Name: "contactNumber", Type: core.FieldText, Aliases: []string{"Contact Number"}, Trim: true},
//	        {Name: "installDate", Type: core.FieldDate, Aliases: []string{"Install Date"}},
//	    },
//	    Identity: "contactNumber",
//	    Match:    []core.MatchStrategy{{"contactNumber"}},
//	})
//
// # Import Flow
//
//  1. [sheet.Decode] reads the first worksheet into typed raw rows
//  2. [BindHeaders] maps sheet headers to fields, exact alias first, then
//     whitespace and case insensitive
//  3. [ImportSchema.Normalize] coerces every field and recomputes derived values
//  4. [Reconciler.Reconcile] checks the scope, then creates or updates one
//     entity per row
//
// Imports run under a global [ImportLimiter] and are serialized per
// entity and scope.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB007: Storage errors (duplicates, constraints, connections)
//   - VAL001-VAL007: Validation errors on single-record writes
//   - FILE001-FILE005: Workbook errors (size, format, empty)
//   - UPL002-UPL005: Import admission and cancellation
//   - TBL002, REC001, SCP001: Unknown entity, record or scope
package core

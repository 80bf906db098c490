// Package models defines the core domain models for splitpilot.
//
// # Current Models
//
// The following models are actively used:
//   - Item: A single line item on a bill, with the members sharing it
//   - SplitRecord: The denormalized mirror of a created ledger expense
//
// Members are identified by display name (strings). The name-to-account-id
// mapping lives in the external ledger and is resolved by the service layer
// at request time; the allocator and codec only ever see names.
//
// # Design Principles
//
// 1. **Money is decimal**: All monetary amounts use shopspring/decimal.
//    Binary floats never carry currency values.
// 2. **The ledger owns the expense**: SplitRecord is a reporting mirror,
//    keyed by the ledger-assigned expense id, never the source of truth.
// 3. **Avoid circular references**: Use ID strings instead of pointers for
//    relationships.
package models

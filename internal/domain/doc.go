// Package domain models shop records and the location-aware ranking rules
// that order them for the discovery feeds.
//
// # Shop Sources
//
// Shops arrive from two systems of record. Persisted shops from the internal
// catalogue carry a primary id. Shops sourced from a third-party places API
// carry an external place id instead. A record may in theory carry neither,
// in which case its trimmed display name stands in for identity. See
// [ResolveIdentity].
//
// # Identity Keys
//
// Keys are prefixed by identity kind:
//
//	"id:42"            primary id
//	"ext:ChIJ..."      external place id
//	"name:Sharma Cafe" display-name fallback
//
// The prefix keeps an internal id from colliding with an external id that
// happens to share its text.
//
// # Distance
//
// Distance in kilometres is resolved per shop in this order:
//
//  1. PrecomputedDistanceKm from the upstream source (authoritative).
//  2. Haversine between the caller coordinate and the shop coordinates.
//  3. Unknown. Never zero: zero means "you are standing in the shop".
//
// Travel time uses a piecewise average speed:
//
//	< 5 km   20 km/h
//	< 20 km  35 km/h
//	≥ 20 km  50 km/h
//
// # Ranking Order
//
// [Rank] applies these keys in order, the first difference wins:
//
//	1. distance known before unknown
//	2. 0.5 km distance bucket, ascending
//	3. locality contains the selected locality (case-insensitive)
//	4. category equals the selected category (case-sensitive)
//	5. paid before unpaid
//	6. featured before not featured
//	7. rating, descending
//	8. exact distance, ascending
//
// Records equal on every key keep their input order.
//
// # Category Sampling
//
// [SampleByCategory] keeps the closest shop per category. Blank categories form
// their own group, labelled [UncategorizedLabel] but kept apart from a real
// category of that name, and compete for a slot like any other category.
package domain

// Package resources embeds the per-game key/seed/name tables each container
// scheme needs to resolve its proprietary constants.
//
// These are data tables, not algorithms, and the retrieval pack's
// original_source excerpt was filtered to code and build files only (see
// original_source/_INDEX.md) -- no per-game key databases survived that
// filter. Each JSON file below therefore ships a small representative stub
// (enough to exercise the parse path and the package's tests) rather than a
// claim to cover every released title; see DESIGN.md's Open Question
// decisions for the per-resource rationale. A production deployment would
// replace these with the full tables recovered by the community.
package resources

import "embed"

//go:embed acv1/all_file_names.txt
var ACV1AllFileNames []byte

//go:embed gyu/seeds.json
var GYUSeeds []byte

//go:embed cpz7/aoitori.json
var CPZ7AoiTori []byte

//go:embed cpz7/realive.json
var CPZ7Realive []byte

//go:embed cpz7/seishun.json
var CPZ7Seishun []byte

//go:embed malie/keys.json
var MalieKeys []byte

//go:embed tactics_arc/keys.json
var TacticsArcKeys []byte

//go:embed qlie/keys.json
var QlieKeys []byte

//go:embed ypf/decrypt_name_tables.json
var YPFDecryptNameTables []byte

// FS exposes the same resources as an fs.FS for callers that want a single
// embed.FS handle rather than the individual byte-slice vars above.
//
//go:embed acv1 gyu cpz7 malie tactics_arc qlie ypf
var FS embed.FS

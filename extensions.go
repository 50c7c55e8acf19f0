package redarc

import "strings"

// resourceExtensions is the closed set of cooked-resource extensions the
// packer recognizes: the ERedExtension enum, taken variant-for-variant
// (spec §6, glossary). Files with any of these extensions, or ".bin",
// take part in packing; everything else is skipped during the directory
// walk.
var resourceExtensions = buildExtensionSet(
	"acousticdata", "actionanimdb", "aiarch", "animgraph", "anims", "app",
	"archetypes", "areas", "audio_metadata", "audiovehcurveset", "behavior",
	"bikecurveset", "bk2", "bnk", "camcurveset", "ccstate", "cfoliage",
	"charcustpreset", "chromaset", "cminimap", "community", "conversations",
	"cooked_mlsetup", "cookedanims", "cookedapp", "cookedprefab", "credits",
	"csv", "cubemap", "curveresset", "curveset", "dat", "devices",
	"dlc_manifest", "dtex", "effect", "ent", "env", "envparam", "envprobe",
	"es", "facialcustom", "facialsetup", "fb2tl", "fnt", "folbrush",
	"foldest", "fp", "game", "gamedef", "garmentlayerparams",
	"genericanimdb", "geometry_cache", "gidata", "gradient",
	"hitrepresentation", "hp", "ies", "inkanim", "inkatlas",
	"inkcharcustomization", "inkenginesettings", "inkfontfamily",
	"inkfullscreencomposition", "inkgamesettings", "inkhud", "inklayers",
	"inkmenu", "inkshapecollection", "inkstyle", "inktypography",
	"inkwidget", "interaction", "journal", "journaldesc", "json",
	"lane_connections", "lane_polygons", "lane_spots", "lights", "lipmap",
	"location", "locopaths", "loot", "mappins", "matlib", "mesh", "mi",
	"mlmask", "mlsetup", "mltemplate", "morphtarget", "mt", "null_areas",
	"opusinfo", "opuspak", "particle", "phys", "physicalscene",
	"physmatlib", "poimappins", "psrep", "quest", "questphase",
	"redphysics", "regionset", "remt", "reps", "reslist", "rig", "scene",
	"scenerid", "scenesversions", "smartobject", "smartobjects", "sp",
	"spatial_representation", "streamingblock", "streamingquerydata",
	"streamingsector", "streamingsector_inplace", "streamingworld",
	"terrainsetup", "texarray", "traffic_collisions", "traffic_persistent",
	"vehcommoncurveset", "vehcurveset", "voicetags", "w2mesh", "w2mi",
	"wem", "workspot", "worldlist", "xbm", "xcube", "wdyn",
)

// alignedExtensions pads entries at placement time to a 4096-byte
// boundary before writing (spec §6).
var alignedExtensions = buildExtensionSet("bk2", "bnk", "opusinfo", "wem", "bin")

// storedExtensions are written without Kraken compression (spec §6).
var storedExtensions = buildExtensionSet("bk2", "bnk", "opusinfo", "wem", "bin", "dat", "opuspak")

func buildExtensionSet(exts ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set["."+strings.ToLower(e)] = struct{}{}
	}
	return set
}

// isPackableExtension reports whether a lowercase, dot-prefixed extension
// participates in packing: it's either in the closed resource set or is
// the catch-all raw ".bin" extension (spec §4.6 step 1).
func isPackableExtension(ext string) bool {
	ext = strings.ToLower(ext)
	if ext == ".bin" {
		return true
	}
	_, ok := resourceExtensions[ext]
	return ok
}

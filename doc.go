/*

Package redarc reads and writes RED-engine resource archives (the
".archive" container used by Cyberpunk 2077 and related titles).

An archive is a flat header, an optional LxrsFooter holding original
depot paths for files the base game didn't ship, and an Index table
of FileEntry / FileSegment / Dependency records addressed by a
64-bit FNV-1a hash of each entry's depot path. Payload bytes for
cooked resources are framed in KARK compression headers; the actual
Kraken codec is proprietary and out of scope here, so this package
substitutes a drop-in zstd-backed adapter (internal/kraken) behind
the same call contract.

Information sources:

- rfuzzo/red4lib, a reference implementation of the archive and CR2W
  formats this package is modeled on.

Typical use:

	arc, err := redarc.Open("assets.archive", redarc.ModeRead)
	if err != nil {
		log.Fatal(err)
	}
	defer arc.Close()

	if err := arc.ExtractToDirectory(dir, redarc.OverwriteSkip, nil); err != nil {
		log.Fatal(err)
	}

*/
package redarc

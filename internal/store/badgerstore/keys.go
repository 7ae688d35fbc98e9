package badgerstore

// Key layout:
//
//	f:<id>                      fileDoc (JSON)
//	oh:<owner>\x00<hash>        id   per-owner content uniqueness
//	on:<owner>\x00<filename>    id   per-owner filename uniqueness
//	t:<token>                   id   global token uniqueness
//	b:<blobKey>                 id   blob ownership
//
// Owner ids never contain control characters, so \x00 cannot collide.
const (
	prefixFile          = "f:"
	prefixOwnerHash     = "oh:"
	prefixOwnerFilename = "on:"
	prefixToken         = "t:"
	prefixBlob          = "b:"
	sep                 = "\x00"
)

func keyFile(id string) []byte {
	return []byte(prefixFile + id)
}

func keyOwnerHash(owner, hash string) []byte {
	return []byte(prefixOwnerHash + owner + sep + hash)
}

func keyOwnerFilename(owner, filename string) []byte {
	return []byte(prefixOwnerFilename + owner + sep + filename)
}

func keyOwnerFilenamePrefix(owner string) []byte {
	return []byte(prefixOwnerFilename + owner + sep)
}

func keyToken(token string) []byte {
	return []byte(prefixToken + token)
}

func keyBlob(blobKey string) []byte {
	return []byte(prefixBlob + blobKey)
}

package preview

// PlaceholderImageURL is served for deleted or failed slots, matching
// the placeholder the export pipeline substitutes.
const PlaceholderImageURL = "/default.png"

type assetOrigin int

const (
	originPersisted assetOrigin = iota
	originStaged
	originPlaceholder
)

// Asset is one visual or audio source with an explicit origin: a
// persisted durable URL, an in-memory staged replacement, or the
// built-in placeholder. The origin is resolved once per render instead
// of null-checking scattered through the renderer.
type Asset struct {
	origin   assetOrigin
	url      string
	data     []byte
	mimeType string
}

func Persisted(url string) Asset {
	return Asset{origin: originPersisted, url: url}
}

func Staged(data []byte, mimeType string) Asset {
	return Asset{origin: originStaged, data: data, mimeType: mimeType}
}

func Placeholder() Asset {
	return Asset{origin: originPlaceholder, url: PlaceholderImageURL}
}

func (a Asset) IsStaged() bool      { return a.origin == originStaged }
func (a Asset) IsPlaceholder() bool { return a.origin == originPlaceholder }

// URL returns the durable URL for persisted and placeholder assets and
// the empty string for staged ones.
func (a Asset) URL() string { return a.url }

// Bytes returns the staged payload, nil for non-staged assets.
func (a Asset) Bytes() []byte { return a.data }

func (a Asset) MimeType() string { return a.mimeType }

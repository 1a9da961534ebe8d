package lookup

// Buckets groups items under string tags.  The items of each bucket are kept
// in the order they were added, so that the first match of a bucket is the
// first added item that matches.
type Buckets[T any] struct {
	// key returns the identity of an item for skipping duplicates.
	key func(v T) (k string)

	// buckets maps tags to the items.
	buckets map[string][]T

	// seen contains the tag and the key of every item, if key is not nil.
	seen map[bucketKey]struct{}

	// n is the total number of items.
	n int
}

// bucketKey is the identity of an item within a bucket.
type bucketKey struct {
	tag string
	key string
}

// NewBuckets returns new properly initialized *Buckets.  key is used to skip
// duplicates within a bucket, it may be nil.
func NewBuckets[T any](key func(v T) (k string)) (b *Buckets[T]) {
	b = &Buckets[T]{
		key:     key,
		buckets: map[string][]T{},
	}

	if key != nil {
		b.seen = map[bucketKey]struct{}{}
	}

	return b
}

// Add appends v to the bucket of tag.  It returns false if the bucket already
// contains a duplicate of v.
func (b *Buckets[T]) Add(tag string, v T) (ok bool) {
	if b.key != nil {
		k := bucketKey{tag: tag, key: b.key(v)}
		if _, ok = b.seen[k]; ok {
			return false
		}

		b.seen[k] = struct{}{}
	}

	b.buckets[tag] = append(b.buckets[tag], v)
	b.n++

	return true
}

// Get returns the items of the bucket of tag.  The caller must not modify the
// returned slice.
func (b *Buckets[T]) Get(tag string) (items []T) {
	return b.buckets[tag]
}

// Len returns the total number of items.
func (b *Buckets[T]) Len() (n int) {
	return b.n
}

// Tags returns the number of non-empty buckets.
func (b *Buckets[T]) Tags() (n int) {
	return len(b.buckets)
}

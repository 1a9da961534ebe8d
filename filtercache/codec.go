package filtercache

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/AdguardTeam/contentfilter"
	"github.com/AdguardTeam/contentfilter/filterlist"
	"github.com/AdguardTeam/contentfilter/filterutil"
	"github.com/AdguardTeam/contentfilter/rules"
)

// encoder writes values to w until the first error, which is kept in err.
type encoder struct {
	w   io.Writer
	err error
}

// short writes v.
func (e *encoder) short(v int16) {
	if e.err == nil {
		e.err = filterutil.WriteShort(e.w, v)
	}
}

// int writes v.
func (e *encoder) int(v int32) {
	if e.err == nil {
		e.err = filterutil.WriteInt(e.w, v)
	}
}

// long writes v.
func (e *encoder) long(v int64) {
	if e.err == nil {
		e.err = filterutil.WriteLong(e.w, v)
	}
}

// string writes s with its length.
func (e *encoder) string(s string) {
	if e.err == nil {
		e.err = filterutil.WriteString(e.w, s)
	}
}

// count writes the number of the following items.
func (e *encoder) count(n int) {
	e.int(int32(n))
}

// index writes the filters of idx.
func (e *encoder) index(idx *contentfilter.FilterIndex) {
	filters := idx.Filters()
	e.count(len(filters))
	for _, f := range filters {
		e.filter(f)
	}
}

// filter writes f.
func (e *encoder) filter(f *rules.Filter) {
	e.short(int16(f.Kind))
	e.short(int16(f.Party))
	e.int(int32(f.ContentType))
	e.short(filterFlags(f))
	e.int(int32(f.ListID))
	e.string(f.Pattern)
	e.string(f.RuleText)

	entries := f.Domains.Entries()
	e.count(len(entries))
	for _, d := range entries {
		e.string(d.Domain)
		if d.Include {
			e.short(1)
		} else {
			e.short(0)
		}
	}
}

// elements writes the filters of c.
func (e *encoder) elements(c *contentfilter.ElementContainer) {
	filters := c.Filters()
	e.count(len(filters))
	for _, f := range filters {
		e.string(f.Domain)
		e.string(f.Selector)
		e.string(f.RuleText)
		e.int(int32(f.ListID))
		e.short(elementFlags(f))
	}
}

// infos writes the list metadata ordered by the list identifiers.
func (e *encoder) infos(infos map[int]*filterlist.Info) {
	e.count(len(infos))
	for _, id := range slices.Sorted(maps.Keys(infos)) {
		i := infos[id]

		e.int(int32(id))
		e.string(i.Title)
		e.string(i.Homepage)
		e.string(i.LastUpdated)
		e.string(i.Version)
		e.string(i.Redirect)
		e.long(infoExpires(i))
	}
}

// decoder reads values from r until the first error, which is kept in err.
// After an error, all methods return zero values.
type decoder struct {
	r   io.Reader
	err error
}

// short reads a short.
func (d *decoder) short() (v int16) {
	if d.err == nil {
		v, d.err = filterutil.ReadShort(d.r)
	}

	return v
}

// int reads an int.
func (d *decoder) int() (v int32) {
	if d.err == nil {
		v, d.err = filterutil.ReadInt(d.r)
	}

	return v
}

// long reads a long.
func (d *decoder) long() (v int64) {
	if d.err == nil {
		v, d.err = filterutil.ReadLong(d.r)
	}

	return v
}

// string reads a length-prefixed string.
func (d *decoder) string() (s string) {
	if d.err == nil {
		s, d.err = filterutil.ReadString(d.r)
	}

	return s
}

// count reads the number of the following items.
func (d *decoder) count() (n int) {
	v := d.int()
	if d.err == nil && v < 0 {
		d.err = fmt.Errorf("negative count %d", v)
	}

	return int(v)
}

// index reads the filters of an index and adds them in order.
func (d *decoder) index() (idx *contentfilter.FilterIndex) {
	n := d.count()

	filters := make([]*rules.Filter, 0, min(n, maxPrealloc))
	var hosts uint
	for range n {
		f := d.filter()
		if d.err != nil {
			return nil
		}

		if f.Kind == rules.KindHost && f.Domains == nil {
			hosts++
		}

		filters = append(filters, f)
	}

	idx = contentfilter.NewFilterIndex(hosts)
	for _, f := range filters {
		if !idx.Add(f) {
			d.err = fmt.Errorf("duplicate filter %q", f.RuleText)

			return nil
		}
	}

	return idx
}

// filter reads a filter and compiles it.
func (d *decoder) filter() (f *rules.Filter) {
	c := &rules.FilterConfig{
		Kind:        rules.Kind(d.short()),
		Party:       rules.Party(d.short()),
		ContentType: rules.ContentType(uint32(d.int())),
	}

	flags := d.short()
	c.IgnoreCase = flags&flagIgnoreCase != 0
	c.Allow = flags&flagAllow != 0
	c.Important = flags&flagImportant != 0
	c.BadFilter = flags&flagBadFilter != 0

	c.ListID = int(d.int())
	c.Pattern = d.string()
	c.Text = d.string()

	n := d.count()
	var entries []rules.DomainEntry
	for range n {
		e := rules.DomainEntry{Domain: d.string(), Include: d.short() != 0}
		if d.err != nil {
			return nil
		}

		entries = append(entries, e)
	}

	if d.err != nil {
		return nil
	}

	c.Domains = rules.NewDomainMap(entries)

	f, err := rules.NewFilter(c)
	if err != nil {
		d.err = fmt.Errorf("filter %q: %w", c.Text, err)

		return nil
	}

	return f
}

// elements reads the element hiding filters.
func (d *decoder) elements() (c *contentfilter.ElementContainer) {
	n := d.count()

	c = contentfilter.NewElementContainer()
	for range n {
		f := &rules.ElementFilter{
			Domain:   d.string(),
			Selector: d.string(),
			RuleText: d.string(),
			ListID:   int(d.int()),
		}

		flags := d.short()
		if d.err != nil {
			return nil
		}

		f.TLDWildcard = flags&flagTLDWildcard != 0
		f.IsHide = flags&flagHide != 0
		f.IsNot = flags&flagNot != 0

		if !c.Add(f) {
			d.err = fmt.Errorf("duplicate element filter %q", f.RuleText)

			return nil
		}
	}

	return c
}

// infos reads the list metadata.
func (d *decoder) infos() (infos map[int]*filterlist.Info) {
	n := d.count()

	infos = make(map[int]*filterlist.Info, min(n, maxPrealloc))
	for range n {
		id := int(d.int())
		infos[id] = &filterlist.Info{
			Title:       d.string(),
			Homepage:    d.string(),
			LastUpdated: d.string(),
			Version:     d.string(),
			Redirect:    d.string(),
			Expires:     time.Duration(d.long()) * time.Second,
		}

		if d.err != nil {
			return nil
		}
	}

	return infos
}

package jps

import (
	"github.com/beevik/etree"

	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
)

func attr(el *etree.Element, key string) string {
	return el.SelectAttrValue(key, "")
}

func hasAttr(el *etree.Element, key string) bool {
	return el.SelectAttr(key) != nil
}

func boolAttr(el *etree.Element, key string) bool {
	return el.SelectAttrValue(key, "") == "true"
}

func urlAttr(el *etree.Element, key string) fileurl.URL {
	v := el.SelectAttrValue(key, "")
	if v == "" {
		return fileurl.Empty
	}
	return fileurl.Parse(v)
}

// setAttr writes key only when value is non-empty.
func setAttr(el *etree.Element, key, value string) {
	if value != "" {
		el.CreateAttr(key, value)
	}
}

func setBoolAttr(el *etree.Element, key string, value bool) {
	if value {
		el.CreateAttr(key, "true")
	}
}

// setFlag writes key="" when on, the convention for exported and
// production-on-test.
func setFlag(el *etree.Element, key string, on bool) {
	if on {
		el.CreateAttr(key, "")
	}
}

func newComponent() *etree.Element {
	return etree.NewElement(componentTag)
}

// optionList is an ordered key/value list read from option tags.
type optionList struct {
	keys   []string
	values map[string]string
}

func readOptions(component *etree.Element) optionList {
	o := optionList{values: make(map[string]string)}
	if component == nil {
		return o
	}
	for _, opt := range component.SelectElements(optionTag) {
		k := attr(opt, "key")
		if k == "" {
			continue
		}
		if _, seen := o.values[k]; !seen {
			o.keys = append(o.keys, k)
		}
		o.values[k] = attr(opt, "value")
	}
	return o
}

func (o optionList) get(key string) string { return o.values[key] }

func optionsComponent(pairs [][2]string) *etree.Element {
	if len(pairs) == 0 {
		return nil
	}
	c := newComponent()
	for _, p := range pairs {
		opt := c.CreateElement(optionTag)
		opt.CreateAttr("key", p[0])
		opt.CreateAttr("value", p[1])
	}
	return c
}

package bosh

// NSBOSH is the namespace every body-level BOSH attribute and the body
// element itself belong to.
const NSBOSH = "http://jabber.org/protocol/httpbind"

// NSXML is the namespace that houses xml:lang and other XML-reserved
// attributes.
const NSXML = "http://www.w3.org/XML/1998/namespace"

// QName is a qualified attribute or element name: a namespace URI paired
// with a local name. Two attributes with the same local name but different
// namespaces are distinct; empty-namespace and BOSH-namespace attributes are
// never conflated.
type QName struct {
	Space string
	Local string
}

// NewQName builds a BOSH-namespace qualified name, the common case for the
// core protocol attributes listed in spec.md §6.
func NewQName(local string) QName { return QName{Space: NSBOSH, Local: local} }

// XMLQName builds a qualified name in the reserved XML namespace, used for
// xml:lang.
func XMLQName(local string) QName { return QName{Space: NSXML, Local: local} }

package solast

// IsFalsePositiveArrayGetter reports whether n declares a public state variable of array type
// with default storage that is neither constant nor immutable. Analysis tools tend to flag the
// getters solc generates for such arrays.
//
// The check does not look at the kind of finding, so it also hides unrelated findings that
// happen to point at such a declaration.
func IsFalsePositiveArrayGetter(n *Node) bool {
	if n == nil || n.Kind != "VariableDeclaration" || n.Decl == nil {
		return false
	}
	d := n.Decl
	if !d.StateVariable || d.Visibility != "public" {
		return false
	}
	if d.StorageLocation != "" && d.StorageLocation != "default" {
		return false
	}
	if d.Constant || d.Mutability == "constant" || d.Mutability == "immutable" {
		return false
	}
	tn := n.TypeName()
	return tn != nil && tn.Kind == "ArrayTypeName"
}

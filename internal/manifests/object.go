package manifests

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/validation"
)

const (
	kargoAPIVersion = "kargo.akuity.io/v1alpha1"
	argoAPIVersion  = "argoproj.io/v1alpha1"
)

// newObject returns an object with the provided type and name. A namespace
// is only set when it is non-empty.
func newObject(apiVersion, kind, namespace, name string) (*unstructured.Unstructured, error) {
	if errs := validation.IsDNS1123Subdomain(name); len(errs) > 0 {
		return nil, fmt.Errorf("invalid %s name %q: %s", kind, name, strings.Join(errs, "; "))
	}
	obj := &unstructured.Unstructured{}
	obj.SetAPIVersion(apiVersion)
	obj.SetKind(kind)
	obj.SetName(name)
	if namespace != "" {
		obj.SetNamespace(namespace)
	}
	return obj, nil
}

// addField sets the value at path, an RFC 6902 JSON pointer, by applying an
// "add" operation to obj.
func addField(obj *unstructured.Unstructured, path string, value any) error {
	ops, err := json.Marshal([]map[string]any{{
		"op":    "add",
		"path":  path,
		"value": value,
	}})
	if err != nil {
		return fmt.Errorf("error encoding patch for %s: %w", path, err)
	}
	patch, err := jsonpatch.DecodePatch(ops)
	if err != nil {
		return fmt.Errorf("error decoding patch for %s: %w", path, err)
	}
	doc, err := obj.MarshalJSON()
	if err != nil {
		return fmt.Errorf("error encoding %s %q: %w", obj.GetKind(), obj.GetName(), err)
	}
	patched, err := patch.Apply(doc)
	if err != nil {
		return fmt.Errorf("error patching %s of %s %q: %w", path, obj.GetKind(), obj.GetName(), err)
	}
	return obj.UnmarshalJSON(patched)
}

// newObjectWithSpec is newObject followed by setting the object's spec.
func newObjectWithSpec(
	apiVersion string,
	kind string,
	namespace string,
	name string,
	spec map[string]any,
) (*unstructured.Unstructured, error) {
	obj, err := newObject(apiVersion, kind, namespace, name)
	if err != nil {
		return nil, err
	}
	if err = addField(obj, "/spec", spec); err != nil {
		return nil, err
	}
	return obj, nil
}

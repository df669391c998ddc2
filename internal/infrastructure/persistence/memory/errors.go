package memory

import "fmt"

func errDuplicate(kind, id string) error {
	return fmt.Errorf("%s already exists: %s", kind, id)
}

func errNotFound(kind, id string) error {
	return fmt.Errorf("%s not found: %s", kind, id)
}

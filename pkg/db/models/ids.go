package models

import "github.com/google/uuid"

// assignID fills a zero primary key before insert so sqlite and postgres
// produce ids the same way.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// IDSet is a set of object ids.
type IDSet map[primitive.ObjectID]struct{}

func NewIDSet(ids ...primitive.ObjectID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Has(id primitive.ObjectID) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Add(id primitive.ObjectID) bool {
	if s.Has(id) {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Dedupe returns ids without repeats, keeping first occurrence order.
func Dedupe(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(IDSet, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if seen.Add(id) {
			out = append(out, id)
		}
	}
	return out
}

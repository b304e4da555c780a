package main

import (
	"math/rand"

	"github.com/record-index/recidx/index"
)

type workloadType string

const (
	oltp      workloadType = "OLTP (90/10)"
	olap      workloadType = "OLAP (10/90)"
	reporting workloadType = "Reporting (Range)"
)

// executeWorkload runs a mixed distribution of operations against an
// already-loaded engine.
func executeWorkload(idx index.Index, kind workloadType, ops int) error {
	rec := index.PadRecord([]byte("x"))
	for i := 0; i < ops; i++ {
		choice := rand.Intn(100)
		key := int32(rand.Intn(ops))

		switch kind {
		case oltp:
			if choice < 90 {
				if _, err := idx.Read(key); err != nil {
					return err
				}
			} else if err := idx.Write(key, rec); err != nil {
				return err
			}
		case olap:
			if choice < 10 {
				if _, err := idx.Read(key); err != nil {
					return err
				}
			} else if err := idx.Write(key, rec); err != nil {
				return err
			}
		case reporting:
			it, err := idx.Range(key, key+100)
			if err != nil {
				return err
			}
			for it.Next() {
			}
			err = it.Error()
			it.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

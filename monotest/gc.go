package monotest

import "slices"

// Collect runs a full collection. Objects not reachable from a GC handle or
// a static field have their finalizers run and are then discarded. It
// returns the number of objects collected.
func (rt *Runtime) Collect() int {
	for _, o := range rt.heap {
		o.mark = false
	}

	var stack []*Object
	for _, o := range rt.handles {
		stack = append(stack, o)
	}
	for _, d := range rt.domains {
		for _, cell := range d.statics {
			stack = append(stack, cell.refs...)
		}
	}

	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if o == nil || o.mark {
			continue
		}
		o.mark = true
		stack = append(stack, o.refs...)
	}

	return rt.finalizeAll(func(o *Object) bool { return !o.mark })
}

// finalizeAll runs the finalizers of every live object matching pred, then
// marks them dead and drops them from the heap. Finalizers see each other's
// objects intact.
func (rt *Runtime) finalizeAll(pred func(*Object) bool) int {
	var victims []*Object
	for _, o := range rt.heap {
		if !o.dead && pred(o) {
			victims = append(victims, o)
		}
	}

	for _, o := range victims {
		if o.finalized {
			continue
		}
		o.finalized = true
		if fin := o.class.finalizer(); fin != nil {
			rt.finalized++
			rt.invoke(o.domain, fin, o, nil)
		}
	}

	for _, o := range victims {
		o.dead = true
	}
	rt.heap = slices.DeleteFunc(rt.heap, func(o *Object) bool { return o.dead })
	return len(victims)
}

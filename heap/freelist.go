package heap

// freeListInsert splices addr into the address-ordered doubly linked free
// list whose head is *head, and updates *head if addr becomes the new head.
// Lists are kept in strict ascending address order; per spec §9 the original
// walk compared against the wrong side of the link ("item < aux->next"),
// which could splice a node in descending order and corrupt later removals.
// This walk advances only while the next node's address is still less than
// addr, which is the fix.
func freeListInsert(head *uintptr, addr uintptr) {
	if *head == 0 {
		storePtr(linksAt(addr), 0)
		storePtr(linksAt(addr)+ptrSize, 0)
		*head = addr
		return
	}

	if addr < *head {
		storePtr(linksAt(addr), *head)
		storePtr(linksAt(addr)+ptrSize, 0)
		storePtr(linksAt(*head)+ptrSize, addr)
		*head = addr
		return
	}

	aux := *head
	for {
		next := loadPtr(linksAt(aux))
		if next == 0 || next > addr {
			break
		}
		aux = next
	}

	next := loadPtr(linksAt(aux))
	storePtr(linksAt(addr), next)
	storePtr(linksAt(addr)+ptrSize, aux)
	storePtr(linksAt(aux), addr)
	if next != 0 {
		storePtr(linksAt(next)+ptrSize, addr)
	}
}

// freeListRemove detaches addr from the free list whose head is *head. It
// handles the head, middle, and tail cases uniformly by following addr's own
// prev/next links rather than special-casing each position, and zeroes
// addr's link fields once detached so a stale read can't be mistaken for
// live list membership.
func freeListRemove(head *uintptr, addr uintptr) {
	prev := loadPtr(linksAt(addr) + ptrSize)
	next := loadPtr(linksAt(addr))

	if prev == 0 {
		*head = next
	} else {
		storePtr(linksAt(prev), next)
	}

	if next != 0 {
		storePtr(linksAt(next)+ptrSize, prev)
	}

	storePtr(linksAt(addr), 0)
	storePtr(linksAt(addr)+ptrSize, 0)
}

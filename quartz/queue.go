package quartz

import "container/heap"

// triggerRecord pairs a stored trigger with its lifecycle state.
type triggerRecord struct {
	trigger *Trigger
	state   TriggerState
	index   int // position in the time queue, -1 when dequeued
}

// triggerQueue is a priority queue of waiting triggers ordered by
// (nextFireTime asc, priority desc, key asc). It implements
// heap.Interface.
type triggerQueue []*triggerRecord

// Len returns the triggerQueue length.
func (pq triggerQueue) Len() int { return len(pq) }

// Less is the items less comparator.
func (pq triggerQueue) Less(i, j int) bool {
	ti, tj := pq[i].trigger, pq[j].trigger
	if !ti.NextFireTime().Equal(tj.NextFireTime()) {
		return ti.NextFireTime().Before(tj.NextFireTime())
	}
	if ti.Priority() != tj.Priority() {
		return ti.Priority() > tj.Priority()
	}
	return ti.Key().String() < tj.Key().String()
}

// Swap exchanges the indexes of the items.
func (pq triggerQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

// Push implements heap.Interface.Push. Adds x as element Len().
func (pq *triggerQueue) Push(x any) {
	n := len(*pq)
	record := x.(*triggerRecord)
	record.index = n
	*pq = append(*pq, record)
}

// Pop implements heap.Interface.Pop. Removes and returns element
// Len() - 1.
func (pq *triggerQueue) Pop() any {
	old := *pq
	n := len(old)
	record := old[n-1]
	record.index = -1 // for safety
	old[n-1] = nil
	*pq = old[0 : n-1]
	return record
}

// push adds the record to the queue maintaining the heap property.
func (pq *triggerQueue) push(record *triggerRecord) {
	heap.Push(pq, record)
}

// pop removes and returns the earliest record.
func (pq *triggerQueue) pop() *triggerRecord {
	if pq.Len() == 0 {
		return nil
	}
	return heap.Pop(pq).(*triggerRecord)
}

// head returns the earliest record without removing it.
func (pq *triggerQueue) head() *triggerRecord {
	if pq.Len() == 0 {
		return nil
	}
	return (*pq)[0]
}

// remove detaches the record from the queue if it is enqueued.
func (pq *triggerQueue) remove(record *triggerRecord) {
	if record.index >= 0 && record.index < pq.Len() &&
		(*pq)[record.index] == record {
		heap.Remove(pq, record.index)
		record.index = -1
	}
}

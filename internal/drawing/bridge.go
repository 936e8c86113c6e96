/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package drawing

import "inkdraw/internal/canvas"

// UIState is what the toolbar needs to render.
type UIState struct {
	Tool    canvas.Tool
	CanUndo bool
	CanRedo bool
}

// State returns the current tool and undo availability.
func (c *Controller) State() UIState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return UIState{Tool: c.tool, CanUndo: c.canUndo, CanRedo: c.canRedo}
}

// ActivateSelectTool switches to the select tool.
func (c *Controller) ActivateSelectTool() { c.activate(canvas.ToolSelect) }

// ActivateDrawTool switches to the draw tool.
func (c *Controller) ActivateDrawTool() { c.activate(canvas.ToolDraw) }

// ActivateEraseTool switches to the eraser.
func (c *Controller) ActivateEraseTool() { c.activate(canvas.ToolEraser) }

func (c *Controller) activate(t canvas.Tool) {
	doc := c.liveDoc()
	if doc == nil {
		return
	}
	doc.SetCurrentTool(t)
	c.mu.Lock()
	c.tool = t
	c.mu.Unlock()
	c.notifyState()
}

// Undo reverts the last change. Without a document it does nothing.
func (c *Controller) Undo() {
	if doc := c.liveDoc(); doc != nil {
		doc.Undo()
	}
}

// Redo reapplies the last undone change. Without a document it does nothing.
func (c *Controller) Redo() {
	if doc := c.liveDoc(); doc != nil {
		doc.Redo()
	}
}

func (c *Controller) liveDoc() canvas.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st != stateMounted {
		return nil
	}
	return c.doc
}

// onAnyChange refreshes undo availability on every change, whatever its source.
func (c *Controller) onAnyChange(canvas.ChangeEvent) {
	doc := c.liveDoc()
	if doc == nil {
		return
	}
	u, r := doc.CanUndo(), doc.CanRedo()
	c.mu.Lock()
	changed := u != c.canUndo || r != c.canRedo
	c.canUndo, c.canRedo = u, r
	c.mu.Unlock()
	if changed {
		c.notifyState()
	}
}

func (c *Controller) notifyState() {
	if c.opts.OnState != nil {
		c.opts.OnState(c.State())
	}
}
